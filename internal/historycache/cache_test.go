package historycache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/historycache"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

func sampleFor(key rtpstypes.InstanceKey, seq rtpstypes.SequenceNumber) rtpstypes.Sample {
	return rtpstypes.Sample{
		SequenceNumber:  seq,
		SourceTimestamp: time.Unix(int64(seq), 0),
		Instance:        key,
	}
}

func TestKeepLastEvictsOldest(t *testing.T) {
	c := historycache.New(historycache.KeepLast, 2, historycache.DefaultResourceLimits)
	key := rtpstypes.InstanceKey{Canonical: "a"}
	for i := rtpstypes.SequenceNumber(1); i <= 3; i++ {
		require.NoError(t, c.Write(sampleFor(key, i)))
	}
	got := c.Snapshot(key)
	require.Len(t, got, 2)
	require.EqualValues(t, 2, got[0].SequenceNumber)
	require.EqualValues(t, 3, got[1].SequenceNumber)
}

func TestKeepAllRetainsEverythingUntilLimit(t *testing.T) {
	limits := historycache.DefaultResourceLimits
	limits.MaxSamplesPerInstance = 3
	c := historycache.New(historycache.KeepAll, historycache.Unlimited, limits)
	key := rtpstypes.InstanceKey{Canonical: "a"}
	for i := rtpstypes.SequenceNumber(1); i <= 3; i++ {
		require.NoError(t, c.Write(sampleFor(key, i)))
	}
	err := c.Write(sampleFor(key, 4))
	require.Error(t, err)
	require.Len(t, c.Snapshot(key), 3)
}

func TestMaxInstancesEnforced(t *testing.T) {
	limits := historycache.DefaultResourceLimits
	limits.MaxInstances = 1
	c := historycache.New(historycache.KeepLast, 1, limits)
	require.NoError(t, c.Write(sampleFor(rtpstypes.InstanceKey{Canonical: "a"}, 1)))
	err := c.Write(sampleFor(rtpstypes.InstanceKey{Canonical: "b"}, 1))
	require.Error(t, err)
}

func TestTakeDrainsInstance(t *testing.T) {
	c := historycache.New(historycache.KeepAll, historycache.Unlimited, historycache.DefaultResourceLimits)
	key := rtpstypes.InstanceKey{Canonical: "a"}
	require.NoError(t, c.Write(sampleFor(key, 1)))
	require.NoError(t, c.Write(sampleFor(key, 2)))

	taken := c.Take(key)
	require.Len(t, taken, 2)
	require.Empty(t, c.Snapshot(key))
}

func TestDisposeInstanceRemovesHistory(t *testing.T) {
	c := historycache.New(historycache.KeepLast, 1, historycache.DefaultResourceLimits)
	key := rtpstypes.InstanceKey{Canonical: "a"}
	require.NoError(t, c.Write(sampleFor(key, 1)))
	require.Equal(t, 1, c.InstanceCount())
	c.DisposeInstance(key)
	require.Equal(t, 0, c.InstanceCount())
}
