// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hdds-io/hdds/internal/hddserr"
)

// Validate compiles schema and checks instance against it, returning an
// *hddserr.Error rather than aborting the process: unlike the teacher's
// HTTP-server config (fatal on a bad config at startup is acceptable
// for a long-running server), a QoS profile can be loaded at any point
// in a participant's lifetime and a bad one must not take the whole
// process down.
func Validate(schema string, instance json.RawMessage) error {
	const op = "config.Validate"

	sch, err := jsonschema.CompileString("schema.json", schema)
	if err != nil {
		return hddserr.Wrap(op, hddserr.Fatal, err, "compile schema")
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		return hddserr.Wrap(op, hddserr.InvalidArgument, err, "decode instance json")
	}

	if err := sch.Validate(v); err != nil {
		return hddserr.Wrap(op, hddserr.InvalidArgument, err, "schema validation failed")
	}
	return nil
}
