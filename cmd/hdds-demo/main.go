// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command hdds-demo is a minimal publisher/subscriber exerciser over
// pkg/hdds's Core API (§6). It is not a language binding or a
// production service: it exists so the engine's wire path can be
// driven end to end from the command line, the same role cc-backend's
// own main.go plays for its http server.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/hdds-io/hdds/internal/config"
	"github.com/hdds-io/hdds/internal/rtpstypes"
	"github.com/hdds-io/hdds/pkg/hdds"
	"github.com/hdds-io/hdds/pkg/log"
)

func main() {
	var flagMode, flagConfigFile, flagTopic, flagType, flagProfile, flagLogLevel string
	var flagDomain int
	var flagRate time.Duration
	var flagCount int
	var flagGops bool

	flag.StringVar(&flagMode, "mode", "publish", "`publish` or `subscribe`")
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Overwrite the default participant config with those specified in `config.json`")
	flag.StringVar(&flagTopic, "topic", "demo.telemetry", "Topic `name` to publish or subscribe on")
	flag.StringVar(&flagType, "type", "demo.Reading", "Type `name` carried on the topic")
	flag.StringVar(&flagProfile, "profile", "", "QoS profile `name` (empty uses the participant default)")
	flag.IntVar(&flagDomain, "domain", 0, "Domain `id` to join")
	flag.DurationVar(&flagRate, "rate", time.Second, "Interval between published samples")
	flag.IntVar(&flagCount, "count", 0, "Number of samples to publish, 0 for unbounded")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "Log level: debug, info, notice, warn, err, crit")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	log.SetLogLevel(flagLogLevel)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := config.Init(flagConfigFile); err != nil {
		log.Fatalf("loading %q failed: %s", flagConfigFile, err.Error())
	}

	p, err := hdds.CreateParticipant(flagDomain, flagProfile)
	if err != nil {
		log.Fatalf("joining domain %d failed: %s", flagDomain, err.Error())
	}

	topic := hdds.Topic{Name: flagTopic, TypeName: flagType}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-sigs
		log.Info("shutting down...")
		close(done)
	}()

	switch flagMode {
	case "publish":
		runPublisher(p, topic, flagRate, flagCount, done)
	case "subscribe":
		runSubscriber(p, topic, done)
	default:
		log.Fatalf("unknown -mode %q (want publish or subscribe)", flagMode)
	}

	if err := p.Destroy(); err != nil {
		log.Errorf("destroying participant: %s", err.Error())
	}
	wg.Wait()
}

// runPublisher writes a counter payload ("sample-N") as one sample every
// rate, up to count times (0 meaning unbounded), stopping early if done
// closes. It does not read stdin.
func runPublisher(p *hdds.Participant, topic hdds.Topic, rate time.Duration, count int, done <-chan struct{}) {
	wh, err := p.CreateWriter(topic, "")
	if err != nil {
		log.Fatalf("creating writer on %q: %s", topic.Name, err.Error())
	}
	log.Infof("publishing on %q every %s", topic.Name, rate)

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	var n int
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			payload := []byte(fmt.Sprintf("sample-%d", n))
			instance := rtpstypes.NewInstanceKey(payload)
			if err := p.Write(wh, instance, payload); err != nil {
				log.Errorf("write failed: %s", err.Error())
			} else {
				log.Debugf("wrote %s", payload)
			}
			n++
			if count > 0 && n >= count {
				return
			}
		}
	}
}

// runSubscriber attaches a reader to a waitset and prints every sample
// it takes until done closes (§6 "Waitset.dispatch").
func runSubscriber(p *hdds.Participant, topic hdds.Topic, done <-chan struct{}) {
	rh, err := p.CreateReader(topic, "")
	if err != nil {
		log.Fatalf("creating reader on %q: %s", topic.Name, err.Error())
	}

	ws, err := p.CreateWaitset()
	if err != nil {
		log.Fatalf("creating waitset: %s", err.Error())
	}
	if err := p.AttachReader(ws, rh); err != nil {
		log.Fatalf("attaching reader to waitset: %s", err.Error())
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	log.Infof("subscribing on %q", topic.Name)
	for {
		select {
		case <-done:
			return
		default:
		}

		_, status, err := p.Wait(ws, 200*time.Millisecond)
		if err != nil {
			log.Errorf("wait failed: %s", err.Error())
			return
		}
		if status == hdds.TakeTimeout {
			continue
		}

		samples, takeStatus, err := p.Take(rh, 32)
		if err != nil {
			log.Errorf("take failed: %s", err.Error())
			continue
		}
		if takeStatus != hdds.TakeOK {
			continue
		}
		for _, s := range samples {
			fmt.Fprintf(out, "[%s] seq=%d instance=%x payload=%s\n",
				s.SourceTimestamp.Format(time.RFC3339Nano), s.SequenceNumber, s.Instance.Hash, s.Payload)
		}
		out.Flush()
	}
}
