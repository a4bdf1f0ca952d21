// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"encoding/json"
	"time"

	"github.com/hdds-io/hdds/internal/hddserr"
	"github.com/hdds-io/hdds/internal/qos"
)

// defaultProfiles is the built-in named QoS profile table, the same
// literal-Go-table shape as the teacher's default_metrics.go cluster
// defaults, just keyed by profile name instead of cluster name.
var defaultProfiles = map[string]qos.Profile{
	"volatile.default": qos.DefaultProfile,
	"reliable.default": {
		Reliability:  qos.Reliable,
		Durability:   qos.Volatile,
		History:      qos.KeepLast,
		HistoryDepth: 1,
		Liveliness:   qos.Automatic,
		Ownership:    qos.Shared,
	},
	"transient_local.default": {
		Reliability:  qos.Reliable,
		Durability:   qos.TransientLocal,
		History:      qos.KeepLast,
		HistoryDepth: 32,
		Liveliness:   qos.Automatic,
		Ownership:    qos.Shared,
	},
	"persistent.default": {
		Reliability:  qos.Reliable,
		Durability:   qos.Persistent,
		History:      qos.KeepLast,
		HistoryDepth: 32,
		Liveliness:   qos.Automatic,
		Ownership:    qos.Shared,
	},
	"exclusive.strict": {
		Reliability:   qos.Reliable,
		Durability:    qos.TransientLocal,
		History:       qos.KeepLast,
		HistoryDepth:  8,
		Deadline:      time.Second,
		Liveliness:    qos.ManualByTopic,
		LeaseDuration: 5 * time.Second,
		Ownership:     qos.Exclusive,
	},
}

// ResolveProfile looks up name in the built-in table overlaid with
// Keys.Profiles (a raw JSON override validated and merged through
// internal/qos.LoadProfile), so an operator can tweak one field of a
// built-in profile without repeating the whole object.
func ResolveProfile(name string) (qos.Profile, error) {
	const op = "config.ResolveProfile"

	base, ok := defaultProfiles[name]
	if !ok {
		base = qos.DefaultProfile
	}

	override, ok := Keys.Profiles[name]
	if !ok {
		return base, nil
	}

	merged, err := mergeProfile(base, override)
	if err != nil {
		return qos.Profile{}, hddserr.Wrap(op, hddserr.InvalidArgument, err, "merge profile %q", name)
	}
	return merged, nil
}

// mergeProfile encodes base back to JSON, lets override's fields take
// precedence via a plain json.Unmarshal onto the decoded map, then
// re-validates/decodes the result through qos.LoadProfile so overrides
// go through the same schema as a ground-up profile definition.
func mergeProfile(base qos.Profile, override json.RawMessage) (qos.Profile, error) {
	baseWire, err := qos.DumpProfile(base)
	if err != nil {
		return qos.Profile{}, err
	}

	var baseFields map[string]any
	if err := json.Unmarshal(baseWire, &baseFields); err != nil {
		return qos.Profile{}, err
	}
	var overrideFields map[string]any
	if err := json.Unmarshal(override, &overrideFields); err != nil {
		return qos.Profile{}, err
	}
	for k, v := range overrideFields {
		baseFields[k] = v
	}

	merged, err := json.Marshal(baseFields)
	if err != nil {
		return qos.Profile{}, err
	}
	return qos.LoadProfile(merged)
}
