// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package durability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckpointAgedWritesFileAndEvicts(t *testing.T) {
	store := openTestStore(t)
	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, store.Persist(DurableSample{
		TopicName: "telemetry", TypeName: "Reading", WriterGUID: "w",
		SequenceNumber: 1, InstanceHash: 1, InstanceKey: []byte("k"),
		Payload: []byte("23.5"), ReceivedAt: old.UnixNano(),
	}))

	tierDir := t.TempDir()
	tier, err := NewFileColdTier(tierDir)
	require.NoError(t, err)

	n, err := CheckpointAged(store, tier, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rows, err := store.Replay("telemetry")
	require.NoError(t, err)
	require.Empty(t, rows)

	entries, err := os.ReadDir(tierDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Name(), ".avro")

	data, err := os.ReadFile(filepath.Join(tierDir, entries[0].Name()))
	require.NoError(t, err)
	require.NotEmpty(t, data)
}

func TestCheckpointAgedNoOpWhenNothingAged(t *testing.T) {
	store := openTestStore(t)
	tier, err := NewFileColdTier(t.TempDir())
	require.NoError(t, err)

	n, err := CheckpointAged(store, tier, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestNewColdTierPicksFileWhenBucketEmpty(t *testing.T) {
	tier, err := NewColdTier(ColdTierConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	_, ok := tier.(*FileColdTier)
	require.True(t, ok)
}
