// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package durability implements the external durability service named
// in §6 as a collaborator of the core engine: a peripheral process that
// persists TRANSIENT/PERSISTENT samples outside any single
// Participant's lifetime and replays them into a writer on late-joiner
// match. It sits outside the core package map (§1 Non-goals: "no
// built-in TRANSIENT/PERSISTENT durability service implementation") —
// the core only defines the DurabilityKind policy and leaves serving it
// to a process like this one.
package durability

import "time"

// Config is the on-disk configuration of one durabilityd process,
// decoded the same way internal/config.ProgramConfig is: JSON with
// unknown fields rejected.
type Config struct {
	DBDriver string `json:"db-driver"`
	DB       string `json:"db"`

	NATSAddress string `json:"nats-address"`
	MatchSubject string `json:"match-subject"`

	ColdTier ColdTierConfig `json:"cold-tier"`

	// RetentionAge bounds how long a persisted sample is kept in the
	// hot sqlite store before CheckpointAged moves it to the cold
	// tier as an Avro OCF file.
	RetentionAge time.Duration `json:"retention-age"`
}

// ColdTierConfig selects and configures where aged-out samples are
// checkpointed. An empty Bucket means the local filesystem Dir is used
// instead of S3.
type ColdTierConfig struct {
	Dir          string `json:"dir"`
	Endpoint     string `json:"endpoint"`
	Bucket       string `json:"bucket"`
	AccessKey    string `json:"access-key"`
	SecretKey    string `json:"secret-key"`
	Region       string `json:"region"`
	UsePathStyle bool   `json:"use-path-style"`
}

// Default mirrors internal/config's tolerant-defaults convention: a
// durabilityd started with no config file still runs, against a local
// sqlite file and filesystem cold tier.
var Default = Config{
	DBDriver:     "sqlite3",
	DB:           "./var/durability.db",
	MatchSubject: "hdds.match",
	ColdTier:     ColdTierConfig{Dir: "./var/durability-cold"},
	RetentionAge: 24 * time.Hour,
}
