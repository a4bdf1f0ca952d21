package qos

import "github.com/hdds-io/hdds/internal/hddserr"

// Compatible checks a candidate writer/reader pair against the
// compatibility matrix of §4.9: a reader's requested policy value must
// never be stricter than what the writer offers. On mismatch it
// returns a descriptive reason so the caller can surface it through
// the incompatible-QoS status, not just a bare bool (§4.9, §7).
func Compatible(writer, reader Profile) (bool, string) {
	if reader.Reliability == Reliable && writer.Reliability == BestEffort {
		return false, "reader requires RELIABLE but writer offers BEST_EFFORT"
	}

	if durabilityRank(reader.Durability) > durabilityRank(writer.Durability) {
		return false, "reader requires stronger durability than writer offers"
	}

	// Deadline: reader's requested period must be >= writer's offered
	// period (a writer promising faster updates than required is fine;
	// a reader asking for tighter timing than the writer offers is not).
	if reader.Deadline > 0 {
		if writer.Deadline == 0 || reader.Deadline < writer.Deadline {
			return false, "reader requires a tighter deadline than writer offers"
		}
	}

	if livelinessRank(reader.Liveliness) > livelinessRank(writer.Liveliness) {
		return false, "reader requires stronger liveliness kind than writer offers"
	}
	if reader.Liveliness != Automatic && reader.LeaseDuration > 0 {
		if writer.LeaseDuration == 0 || reader.LeaseDuration < writer.LeaseDuration {
			return false, "reader requires a shorter liveliness lease than writer offers"
		}
	}

	if reader.Ownership != writer.Ownership {
		return false, "writer and reader disagree on ownership kind (SHARED vs EXCLUSIVE)"
	}

	return true, ""
}

// CompatibleErr wraps Compatible as an *hddserr.Error for callers that
// want the standard error taxonomy instead of a bool/string pair.
func CompatibleErr(op string, writer, reader Profile) error {
	ok, reason := Compatible(writer, reader)
	if ok {
		return nil
	}
	return hddserr.New(op, hddserr.IncompatibleQoS, "%s", reason)
}

func durabilityRank(d DurabilityKind) int {
	switch d {
	case Volatile:
		return 0
	case TransientLocal:
		return 1
	case Transient:
		return 2
	case Persistent:
		return 3
	default:
		return 0
	}
}

func livelinessRank(l LivelinessKind) int {
	switch l {
	case Automatic:
		return 0
	case ManualByParticipant:
		return 1
	case ManualByTopic:
		return 2
	default:
		return 0
	}
}
