// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config owns the process-wide, on-disk configuration of a
// participant process: listen locators, runtime sizing, and the named
// QoS profile table. It is intentionally the one place in this module
// that still exposes a package-level mutable var (Keys), mirroring the
// teacher's own config package — everything downstream of it
// (Runtime, Participant) is constructed once from a Keys snapshot and
// then owned explicitly, per §9's prohibition on singletons for
// stateful components.
package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/joho/godotenv"

	"github.com/hdds-io/hdds/internal/hddserr"
	"github.com/hdds-io/hdds/pkg/log"
)

// ListenConfig names the locators a participant binds on (§4.5).
type ListenConfig struct {
	Unicast   []string `json:"unicast"`
	Multicast []string `json:"multicast"`
	TCPOnly   bool     `json:"tcp-only"`
}

// RuntimeConfig sizes internal/runtime's worker pool and optional
// diagnostics agent.
type RuntimeConfig struct {
	Workers    int    `json:"workers"`
	EnableGops bool   `json:"enable-gops"`
	GopsAddr   string `json:"gops-addr"`
}

// ProgramConfig is the full on-disk configuration of one participant
// process.
type ProgramConfig struct {
	HostID         uint64                     `json:"host-id"`
	VendorID       string                     `json:"vendor-id"`
	Listen         ListenConfig               `json:"listen"`
	Runtime        RuntimeConfig              `json:"runtime"`
	DefaultProfile string                     `json:"default-profile"`
	Profiles       map[string]json.RawMessage `json:"profiles"`
}

// Keys holds the active configuration, populated by Init from
// defaults overlaid with an optional config file.
var Keys ProgramConfig = ProgramConfig{
	VendorID:       "010f",
	Listen:         ListenConfig{Unicast: []string{"udpv4://0.0.0.0:7400"}},
	Runtime:        RuntimeConfig{Workers: 0},
	DefaultProfile: "volatile.default",
}

// Init loads a .env file if present, then overlays flagConfigFile (if
// it exists) onto Keys after validating it against the schema. A
// missing config file is not an error: Keys keeps its defaults,
// mirroring the teacher's own tolerant Init.
func Init(flagConfigFile string) error {
	const op = "config.Init"

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("config: could not load .env: %v", err)
	}

	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return hddserr.Wrap(op, hddserr.InvalidArgument, err, "read config file %q", flagConfigFile)
	}

	if err := Validate(configSchema, raw); err != nil {
		return hddserr.Wrap(op, hddserr.InvalidArgument, err, "validate config file %q", flagConfigFile)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		return hddserr.Wrap(op, hddserr.InvalidArgument, err, "decode config file %q", flagConfigFile)
	}
	return nil
}
