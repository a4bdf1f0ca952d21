// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package durability

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/hdds-io/hdds/pkg/log"
)

// MatchEvent is published by a core participant (not part of this
// package — §6's "external durability service" collaborator note
// assumes a small publisher shim on the participant side) whenever a
// reader matches a writer whose profile is Transient or Persistent.
// durabilityd subscribes to this subject and replays history for the
// matched topic into its own writer.
type MatchEvent struct {
	TopicName string `json:"topic_name"`
	TypeName  string `json:"type_name"`
}

// Bus wraps a NATS connection scoped to match notifications. It is
// built the same way pkg/nats.Client is — connect, track
// subscriptions, close them together — but as an explicitly
// constructed value returned to its caller rather than a package
// singleton behind Connect/GetClient, since nothing about durabilityd
// requires exactly one Bus per process.
type Bus struct {
	conn         *nats.Conn
	subscription *nats.Subscription
	mu           sync.Mutex
}

// Connect dials address, failing fast if it cannot be reached:
// durabilityd has nothing useful to do without its match-notification
// bus, unlike the teacher's tolerant nats.Connect which only warns.
func Connect(address string) (*Bus, error) {
	nc, err := nats.Connect(address,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("durability: nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("durability: nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("durability: nats connect to %q: %w", address, err)
	}
	return &Bus{conn: nc}, nil
}

// SubscribeMatches registers handler for every MatchEvent published on
// subject, decoding the JSON payload before invoking it.
func (b *Bus) SubscribeMatches(subject string, handler func(MatchEvent)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev MatchEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Warnf("durability: malformed match event on %q: %v", subject, err)
			return
		}
		handler(ev)
	})
	if err != nil {
		return fmt.Errorf("durability: subscribe %q: %w", subject, err)
	}
	b.subscription = sub
	return nil
}

// PublishMatch announces ev on subject; called from the core
// participant side of the collaboration.
func (b *Bus) PublishMatch(subject string, ev MatchEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("durability: marshal match event: %w", err)
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("durability: publish match event: %w", err)
	}
	return nil
}

// Close unsubscribes and closes the connection.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscription != nil {
		_ = b.subscription.Unsubscribe()
	}
	b.conn.Close()
}
