package congestion_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/congestion"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

func TestAIMDBucketDecreasesOnLoss(t *testing.T) {
	b := congestion.NewAIMDBucket(congestion.RateConfig{
		InitialBytesPerSec:     1000,
		MinBytesPerSec:         10,
		MaxBytesPerSec:         10000,
		MultiplicativeDecrease: 0.5,
	})
	before := b.EffectiveRate()
	b.OnLoss()
	require.InDelta(t, before/2, b.EffectiveRate(), 0.001)
}

func TestAIMDBucketRespectsMinimum(t *testing.T) {
	b := congestion.NewAIMDBucket(congestion.RateConfig{
		InitialBytesPerSec:     100,
		MinBytesPerSec:         80,
		MaxBytesPerSec:         10000,
		MultiplicativeDecrease: 0.1,
	})
	b.OnLoss()
	require.GreaterOrEqual(t, b.EffectiveRate(), 80.0)
}

func TestQueueServesCriticalFirst(t *testing.T) {
	q := congestion.NewQueue(congestion.DefaultQueueConfig)
	q.Push(congestion.Frame{Class: congestion.ClassBestEffort, Payload: []byte("be")})
	q.Push(congestion.Frame{Class: congestion.ClassCritical, Payload: []byte("crit")})

	f, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, congestion.ClassCritical, f.Class)
}

func TestQueueCoalescesBestEffortByInstance(t *testing.T) {
	q := congestion.NewQueue(congestion.DefaultQueueConfig)
	key := rtpstypes.InstanceKey{Canonical: "x"}
	q.Push(congestion.Frame{Class: congestion.ClassBestEffort, Instance: key, Payload: []byte("old")})
	q.Push(congestion.Frame{Class: congestion.ClassBestEffort, Instance: key, Payload: []byte("new")})

	require.Equal(t, 1, q.Len())
	f, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, []byte("new"), f.Payload)
}

func TestNackCoalescerMergesWithinWindow(t *testing.T) {
	done := make(chan rtpstypes.SequenceNumberSet, 1)
	c := congestion.NewNackCoalescer(0, func(_ rtpstypes.GUID, merged rtpstypes.SequenceNumberSet) {
		done <- merged
	})
	reader := rtpstypes.GUID{}

	s1 := rtpstypes.NewSequenceNumberSet(5, 1)
	s1.Set(5)
	s2 := rtpstypes.NewSequenceNumberSet(7, 1)
	s2.Set(7)

	c.Offer(reader, s1)
	c.Offer(reader, s2)

	merged := <-done
	require.True(t, merged.Has(5))
	require.True(t, merged.Has(7))
}
