// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package durability

import (
	"fmt"
	"sync"
	"time"

	"github.com/hdds-io/hdds/internal/rtpstypes"
	"github.com/hdds-io/hdds/pkg/hdds"
	"github.com/hdds-io/hdds/pkg/log"
)

// Daemon is one durabilityd process: a participant of its own (so it
// can exercise the ordinary Writer/Reader surface instead of reaching
// into core internals), a hot sqlite Store, a cold-tier checkpoint
// target, and a match-notification Bus. It mirrors the "explicit
// owned value, no singleton" shape every engine component follows
// (§9) even though durabilityd is a peripheral, not a core, process.
type Daemon struct {
	cfg         Config
	participant *hdds.Participant
	store       *Store
	tier        ColdTier
	bus         *Bus

	mu      sync.Mutex
	writers map[string]hdds.WriterHandle // topic name -> replay writer
}

// NewDaemon wires a Daemon from cfg, opening its hot store and cold
// tier but not yet connecting to NATS or capturing any topic — call
// Start for that.
func NewDaemon(cfg Config, participant *hdds.Participant) (*Daemon, error) {
	store, err := OpenStore(cfg.DBDriver, cfg.DB)
	if err != nil {
		return nil, err
	}

	tier, err := NewColdTier(cfg.ColdTier)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Daemon{
		cfg:         cfg,
		participant: participant,
		store:       store,
		tier:        tier,
		writers:     make(map[string]hdds.WriterHandle),
	}, nil
}

// Start connects the match-notification bus and begins serving replay
// requests for it; Capture must still be called once per topic the
// daemon should persist.
func (d *Daemon) Start() error {
	bus, err := Connect(d.cfg.NATSAddress)
	if err != nil {
		return err
	}
	d.bus = bus

	return bus.SubscribeMatches(d.cfg.MatchSubject, d.onMatch)
}

// Close releases the bus connection and hot store. It does not destroy
// the Participant — the caller owns that, the same as every other
// pkg/hdds collaborator.
func (d *Daemon) Close() error {
	if d.bus != nil {
		d.bus.Close()
	}
	return d.store.Close()
}

// Capture creates a reader on topic and persists every sample it takes
// into the hot store, returning once the reader and its polling
// goroutine are running. profileName should name a Transient or
// Persistent profile — capturing a Volatile topic would just grow the
// store forever with nothing a late joiner could use it for.
func (d *Daemon) Capture(topic hdds.Topic, profileName string) error {
	rh, err := d.participant.CreateReader(topic, profileName)
	if err != nil {
		return fmt.Errorf("durability: create capture reader on %q: %w", topic.Name, err)
	}

	ws, err := d.participant.CreateWaitset()
	if err != nil {
		return fmt.Errorf("durability: create capture waitset: %w", err)
	}
	if err := d.participant.AttachReader(ws, rh); err != nil {
		return fmt.Errorf("durability: attach capture reader: %w", err)
	}

	go d.captureLoop(topic, rh, ws)
	return nil
}

func (d *Daemon) captureLoop(topic hdds.Topic, rh hdds.ReaderHandle, ws hdds.WaitsetHandle) {
	for {
		_, status, err := d.participant.Wait(ws, time.Second)
		if err != nil {
			log.Errorf("durability: capture wait on %q failed: %v", topic.Name, err)
			return
		}
		if status == hdds.TakeTimeout {
			continue
		}

		samples, takeStatus, err := d.participant.Take(rh, 64)
		if err != nil || takeStatus != hdds.TakeOK {
			continue
		}
		for _, s := range samples {
			if err := d.store.Persist(sampleToRecord(topic, s)); err != nil {
				log.Errorf("durability: persist sample on %q: %v", topic.Name, err)
			}
		}
	}
}

// sampleToRecord converts a wire-level sample into the hot store's row
// shape, split out of captureLoop so the conversion can be exercised
// without a live matched writer/reader pair.
func sampleToRecord(topic hdds.Topic, s rtpstypes.Sample) DurableSample {
	return DurableSample{
		TopicName:       topic.Name,
		TypeName:        topic.TypeName,
		WriterGUID:      s.WriterGUID.String(),
		SequenceNumber:  int64(s.SequenceNumber),
		InstanceHash:    int64(s.Instance.Hash),
		InstanceKey:     []byte(s.Instance.Canonical),
		Payload:         s.Payload,
		Disposed:        s.Status.Disposed(),
		SourceTimestamp: s.SourceTimestamp.UnixNano(),
		ReceivedAt:      s.ReceptionTime.UnixNano(),
	}
}

// onMatch replays every persisted sample for ev.TopicName into a
// writer the daemon owns, through the ordinary Writer.Write path — the
// late-joining reader that triggered this match sees exactly the same
// API a normal publisher would have produced.
func (d *Daemon) onMatch(ev MatchEvent) {
	rows, err := d.store.Replay(ev.TopicName)
	if err != nil {
		log.Errorf("durability: replay %q: %v", ev.TopicName, err)
		return
	}
	if len(rows) == 0 {
		return
	}

	wh, err := d.replayWriter(hdds.Topic{Name: ev.TopicName, TypeName: ev.TypeName})
	if err != nil {
		log.Errorf("durability: replay writer for %q: %v", ev.TopicName, err)
		return
	}

	for _, r := range rows {
		instance, payload := r.toSample()
		if r.Disposed {
			if err := d.participant.Dispose(wh, instance); err != nil {
				log.Errorf("durability: replay dispose on %q: %v", ev.TopicName, err)
			}
			continue
		}
		if err := d.participant.Write(wh, instance, payload); err != nil {
			log.Errorf("durability: replay write on %q: %v", ev.TopicName, err)
		}
	}
	log.Infof("durability: replayed %d samples for %q", len(rows), ev.TopicName)
}

// replayWriter returns the daemon's writer for topic, creating one with
// the Persistent default profile on first use.
func (d *Daemon) replayWriter(topic hdds.Topic) (hdds.WriterHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if wh, ok := d.writers[topic.Name]; ok {
		return wh, nil
	}
	wh, err := d.participant.CreateWriter(topic, "persistent.default")
	if err != nil {
		return hdds.WriterHandle{}, err
	}
	d.writers[topic.Name] = wh
	return wh, nil
}

// RunCheckpointLoop periodically moves samples older than
// cfg.RetentionAge to the cold tier until stop is closed. It is meant
// to run as its own goroutine, the same shape as cc-backend's
// StopJobsExceedingWalltime ticker in cmd/cc-backend/main.go.
func (d *Daemon) RunCheckpointLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-d.cfg.RetentionAge)
			n, err := CheckpointAged(d.store, d.tier, cutoff)
			if err != nil {
				log.Errorf("durability: checkpoint failed: %v", err)
				continue
			}
			if n > 0 {
				log.Infof("durability: checkpointed %d aged samples", n)
			}
		}
	}
}
