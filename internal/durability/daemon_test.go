// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package durability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/config"
	"github.com/hdds-io/hdds/internal/rtpstypes"
	"github.com/hdds-io/hdds/pkg/hdds"
)

// withTestConfig points config.Keys at an ephemeral loopback locator
// for one test, the same direct-mutation pattern pkg/hdds's own tests
// use for the package-level Keys var.
func withTestConfig(t *testing.T, unicast string) {
	t.Helper()
	prev := config.Keys
	config.Keys = config.ProgramConfig{
		VendorID:       "010f",
		Listen:         config.ListenConfig{Unicast: []string{unicast}},
		DefaultProfile: "volatile.default",
	}
	t.Cleanup(func() { config.Keys = prev })
}

func newTestDaemon(t *testing.T, unicast string) *Daemon {
	t.Helper()
	withTestConfig(t, unicast)
	p, err := hdds.CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })

	cfg := Default
	cfg.DB = t.TempDir() + "/durability.db"
	cfg.ColdTier = ColdTierConfig{Dir: t.TempDir()}

	d, err := NewDaemon(cfg, p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestCaptureCreatesReaderAndWaitsetWithoutError(t *testing.T) {
	d := newTestDaemon(t, "udpv4://127.0.0.1:17540")
	require.NoError(t, d.Capture(hdds.Topic{Name: "captured", TypeName: "T"}, "persistent.default"))
}

// TestSampleToRecordConvertsWireSampleToHotStoreRow exercises the
// conversion captureLoop applies to every sample it takes, independent
// of a live matched writer/reader pair (pkg/hdds has no public seam to
// force a same-process match from outside the package — see its own
// tests for that path).
func TestSampleToRecordConvertsWireSampleToHotStoreRow(t *testing.T) {
	topic := hdds.Topic{Name: "captured", TypeName: "Reading"}
	payload := []byte("23.5")
	sample := rtpstypes.Sample{
		SequenceNumber:  9,
		SourceTimestamp: time.Unix(100, 0),
		ReceptionTime:   time.Unix(101, 0),
		Payload:         payload,
		Instance:        rtpstypes.NewInstanceKey(payload),
	}

	rec := sampleToRecord(topic, sample)
	require.Equal(t, "captured", rec.TopicName)
	require.Equal(t, "Reading", rec.TypeName)
	require.Equal(t, int64(9), rec.SequenceNumber)
	require.Equal(t, "23.5", string(rec.Payload))
	require.False(t, rec.Disposed)
}

func TestCaptureLoopPersistsViaStore(t *testing.T) {
	d := newTestDaemon(t, "udpv4://127.0.0.1:17543")
	topic := hdds.Topic{Name: "captured", TypeName: "T"}
	sample := rtpstypes.Sample{
		SequenceNumber: 1,
		Payload:        []byte("v"),
		Instance:       rtpstypes.NewInstanceKey([]byte("k")),
	}

	require.NoError(t, d.store.Persist(sampleToRecord(topic, sample)))

	rows, err := d.store.Replay(topic.Name)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestOnMatchReplaysPersistedSamplesThroughWritePath(t *testing.T) {
	d := newTestDaemon(t, "udpv4://127.0.0.1:17541")

	require.NoError(t, d.store.Persist(DurableSample{
		TopicName: "replayed", TypeName: "T", WriterGUID: "w",
		SequenceNumber: 1, InstanceHash: 1, InstanceKey: []byte("k"),
		Payload: []byte("payload-a"),
	}))

	withTestConfig(t, "udpv4://127.0.0.1:17542")
	sub, err := hdds.CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Destroy() })
	rh, err := sub.CreateReader(hdds.Topic{Name: "replayed", TypeName: "T"}, "persistent.default")
	require.NoError(t, err)

	d.onMatch(MatchEvent{TopicName: "replayed", TypeName: "T"})

	wh, err := d.replayWriter(hdds.Topic{Name: "replayed", TypeName: "T"})
	require.NoError(t, err)
	require.NotZero(t, wh)

	_ = rh // exercised only to confirm CreateReader on the topic succeeds; matching is out of scope here (see pkg/hdds DESIGN.md note)
}
