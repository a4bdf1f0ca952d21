// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command hdds-durabilityd runs the external durability service named
// in §6: a participant-like process that persists TRANSIENT/PERSISTENT
// samples outside any one Participant's lifetime and replays them into
// late joiners via the ordinary Writer.Write path. It is a peripheral
// process, not part of the core engine (§1 Non-goals).
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/hdds-io/hdds/internal/config"
	"github.com/hdds-io/hdds/internal/durability"
	"github.com/hdds-io/hdds/pkg/hdds"
	"github.com/hdds-io/hdds/pkg/log"
)

func main() {
	var flagParticipantConfig, flagDurabilityConfig, flagTopics, flagProfile, flagLogLevel string
	var flagDomain int
	var flagGops bool

	flag.StringVar(&flagParticipantConfig, "config", "./config.json", "Participant config `file` (same shape as hdds-demo's)")
	flag.StringVar(&flagDurabilityConfig, "durability-config", "./durability.json", "Durability daemon config `file`")
	flag.StringVar(&flagTopics, "topics", "", "Comma-separated `list` of topic names to capture for durability")
	flag.StringVar(&flagProfile, "profile", "persistent.default", "QoS profile `name` used both to capture and to replay")
	flag.IntVar(&flagDomain, "domain", 0, "Domain `id` to join")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "Log level: debug, info, notice, warn, err, crit")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	log.SetLogLevel(flagLogLevel)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := config.Init(flagParticipantConfig); err != nil {
		log.Fatalf("loading %q failed: %s", flagParticipantConfig, err.Error())
	}

	durCfg := durability.Default
	if raw, err := os.ReadFile(flagDurabilityConfig); err == nil {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&durCfg); err != nil {
			log.Fatalf("decoding %q failed: %s", flagDurabilityConfig, err.Error())
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("reading %q failed: %s", flagDurabilityConfig, err.Error())
	}

	participant, err := hdds.CreateParticipant(flagDomain, flagProfile)
	if err != nil {
		log.Fatalf("joining domain %d failed: %s", flagDomain, err.Error())
	}

	daemon, err := durability.NewDaemon(durCfg, participant)
	if err != nil {
		log.Fatalf("starting durability daemon failed: %s", err.Error())
	}

	if err := daemon.Start(); err != nil {
		log.Fatalf("connecting durability daemon failed: %s", err.Error())
	}

	for _, name := range strings.Split(flagTopics, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := daemon.Capture(hdds.Topic{Name: name, TypeName: name}, flagProfile); err != nil {
			log.Fatalf("capturing topic %q failed: %s", name, err.Error())
		}
		log.Infof("capturing %q for durability", name)
	}

	stop := make(chan struct{})
	go daemon.RunCheckpointLoop(time.Hour, stop)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Info("shutting down...")
	close(stop)
	if err := daemon.Close(); err != nil {
		log.Errorf("closing durability daemon: %s", err.Error())
	}
	if err := participant.Destroy(); err != nil {
		log.Errorf("destroying participant: %s", err.Error())
	}
}
