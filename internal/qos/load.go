package qos

import (
	"encoding/json"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hdds-io/hdds/internal/hddserr"
)

var profileJSONSchema *jsonschema.Schema

func init() {
	sch, err := jsonschema.CompileString("qos-profile.json", profileSchema)
	if err != nil {
		// The schema is a compile-time constant; a compile failure here
		// is a programming error, not a runtime condition to recover from.
		panic("qos: invalid built-in profile schema: " + err.Error())
	}
	profileJSONSchema = sch
}

// wireProfile mirrors Profile's JSON encoding (§4.9, §6): human-legible
// enum strings and Go duration strings rather than raw integers.
type wireProfile struct {
	Reliability       string `json:"reliability"`
	Durability        string `json:"durability"`
	History           string `json:"history"`
	HistoryDepth      int    `json:"history-depth"`
	Deadline          string `json:"deadline"`
	Lifespan          string `json:"lifespan"`
	Liveliness        string `json:"liveliness"`
	LeaseDuration     string `json:"lease-duration"`
	Ownership         string `json:"ownership"`
	OwnershipStrength int32  `json:"ownership-strength"`
	ContentFilter     string `json:"content-filter"`
}

// LoadProfile validates raw against the QoS profile schema and decodes
// it into a Profile, starting from DefaultProfile for any field raw
// omits (§4.9, §6 register_descriptor-adjacent profile loading).
func LoadProfile(raw json.RawMessage) (Profile, error) {
	const op = "qos.LoadProfile"

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Profile{}, hddserr.Wrap(op, hddserr.InvalidArgument, err, "decode profile json")
	}
	if err := profileJSONSchema.Validate(v); err != nil {
		return Profile{}, hddserr.Wrap(op, hddserr.InvalidArgument, err, "profile failed schema validation")
	}

	var w wireProfile
	w.HistoryDepth = DefaultProfile.HistoryDepth
	if err := json.Unmarshal(raw, &w); err != nil {
		return Profile{}, hddserr.Wrap(op, hddserr.InvalidArgument, err, "decode profile fields")
	}

	p := DefaultProfile
	if w.Reliability != "" {
		if w.Reliability == "reliable" {
			p.Reliability = Reliable
		} else {
			p.Reliability = BestEffort
		}
	}
	if w.Durability != "" {
		switch w.Durability {
		case "volatile":
			p.Durability = Volatile
		case "transient_local":
			p.Durability = TransientLocal
		case "transient":
			p.Durability = Transient
		case "persistent":
			p.Durability = Persistent
		}
	}
	if w.History != "" {
		if w.History == "keep_all" {
			p.History = KeepAll
		} else {
			p.History = KeepLast
		}
	}
	p.HistoryDepth = w.HistoryDepth

	var err error
	if p.Deadline, err = parseOptionalDuration(op, w.Deadline); err != nil {
		return Profile{}, err
	}
	if p.Lifespan, err = parseOptionalDuration(op, w.Lifespan); err != nil {
		return Profile{}, err
	}
	if p.LeaseDuration, err = parseOptionalDuration(op, w.LeaseDuration); err != nil {
		return Profile{}, err
	}

	if w.Liveliness != "" {
		switch w.Liveliness {
		case "automatic":
			p.Liveliness = Automatic
		case "manual_by_participant":
			p.Liveliness = ManualByParticipant
		case "manual_by_topic":
			p.Liveliness = ManualByTopic
		}
	}
	if w.Ownership != "" {
		if w.Ownership == "exclusive" {
			p.Ownership = Exclusive
		} else {
			p.Ownership = Shared
		}
	}
	p.OwnershipStrength = w.OwnershipStrength
	p.ContentFilter = w.ContentFilter

	return p, nil
}

// DumpProfile renders p back into the wire JSON shape LoadProfile
// accepts, used by internal/config to merge a raw override on top of a
// named built-in profile.
func DumpProfile(p Profile) (json.RawMessage, error) {
	w := wireProfile{
		HistoryDepth:      p.HistoryDepth,
		OwnershipStrength: p.OwnershipStrength,
		ContentFilter:     p.ContentFilter,
	}
	switch p.Reliability {
	case Reliable:
		w.Reliability = "reliable"
	default:
		w.Reliability = "best_effort"
	}
	switch p.Durability {
	case TransientLocal:
		w.Durability = "transient_local"
	case Transient:
		w.Durability = "transient"
	case Persistent:
		w.Durability = "persistent"
	default:
		w.Durability = "volatile"
	}
	switch p.History {
	case KeepAll:
		w.History = "keep_all"
	default:
		w.History = "keep_last"
	}
	switch p.Liveliness {
	case ManualByParticipant:
		w.Liveliness = "manual_by_participant"
	case ManualByTopic:
		w.Liveliness = "manual_by_topic"
	default:
		w.Liveliness = "automatic"
	}
	switch p.Ownership {
	case Exclusive:
		w.Ownership = "exclusive"
	default:
		w.Ownership = "shared"
	}
	if p.Deadline > 0 {
		w.Deadline = p.Deadline.String()
	}
	if p.Lifespan > 0 {
		w.Lifespan = p.Lifespan.String()
	}
	if p.LeaseDuration > 0 {
		w.LeaseDuration = p.LeaseDuration.String()
	}
	return json.Marshal(w)
}

func parseOptionalDuration(op, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, hddserr.Wrap(op, hddserr.InvalidArgument, err, "parse duration %q", s)
	}
	return d, nil
}
