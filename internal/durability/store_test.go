// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package durability

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "durability.db")
	store, err := OpenStore("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenStoreCreatesSchema(t *testing.T) {
	store := openTestStore(t)

	err := store.Persist(DurableSample{
		TopicName:       "telemetry",
		TypeName:        "Reading",
		WriterGUID:      "writer-1",
		SequenceNumber:  1,
		InstanceHash:    42,
		InstanceKey:     []byte("sensor-a"),
		Payload:         []byte("23.5"),
		SourceTimestamp: time.Now().UnixNano(),
		ReceivedAt:      time.Now().UnixNano(),
	})
	require.NoError(t, err)

	rows, err := store.Replay("telemetry")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "sensor-a", string(rows[0].InstanceKey))
}

func TestPersistIgnoresDuplicateSequence(t *testing.T) {
	store := openTestStore(t)
	sample := DurableSample{
		TopicName:       "telemetry",
		TypeName:        "Reading",
		WriterGUID:      "writer-1",
		SequenceNumber:  7,
		InstanceHash:    1,
		InstanceKey:     []byte("k"),
		Payload:         []byte("v1"),
		SourceTimestamp: 1,
		ReceivedAt:      1,
	}
	require.NoError(t, store.Persist(sample))

	sample.Payload = []byte("v2")
	require.NoError(t, store.Persist(sample)) // duplicate (writer_guid, sequence_number): ignored, not an error

	rows, err := store.Replay("telemetry")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "v1", string(rows[0].Payload))
}

func TestReplayOrdersBySequenceNumber(t *testing.T) {
	store := openTestStore(t)
	for _, seq := range []int64{3, 1, 2} {
		require.NoError(t, store.Persist(DurableSample{
			TopicName:      "ordered",
			TypeName:       "T",
			WriterGUID:     "w",
			SequenceNumber: seq,
			InstanceKey:    []byte("k"),
			Payload:        []byte{byte(seq)},
		}))
	}

	rows, err := store.Replay("ordered")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, int64(1), rows[0].SequenceNumber)
	require.Equal(t, int64(2), rows[1].SequenceNumber)
	require.Equal(t, int64(3), rows[2].SequenceNumber)
}

func TestReplayReturnsEmptyForUnknownTopic(t *testing.T) {
	store := openTestStore(t)
	rows, err := store.Replay("nothing-here")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestAgedBeforeAndEvict(t *testing.T) {
	store := openTestStore(t)
	old := time.Now().Add(-48 * time.Hour)
	fresh := time.Now()

	require.NoError(t, store.Persist(DurableSample{
		TopicName: "t", WriterGUID: "w", SequenceNumber: 1,
		InstanceKey: []byte("k"), ReceivedAt: old.UnixNano(),
	}))
	require.NoError(t, store.Persist(DurableSample{
		TopicName: "t", WriterGUID: "w", SequenceNumber: 2,
		InstanceKey: []byte("k"), ReceivedAt: fresh.UnixNano(),
	}))

	aged, err := store.AgedBefore(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, aged, 1)
	require.Equal(t, int64(1), aged[0].SequenceNumber)

	ids := make([]int64, len(aged))
	for i, r := range aged {
		ids[i] = r.ID
	}
	require.NoError(t, store.Evict(ids))

	remaining, err := store.Replay("t")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, int64(2), remaining[0].SequenceNumber)
}
