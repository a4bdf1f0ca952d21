package reliability_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/reliability"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

func TestReaderDeliversContiguousInOrder(t *testing.T) {
	var mu sync.Mutex
	var delivered []rtpstypes.SequenceNumber

	rr := reliability.NewReaderReliability(reliability.Config{}, reliability.ReaderHooks{
		Deliver: func(_ rtpstypes.GUID, seq rtpstypes.SequenceNumber) {
			mu.Lock()
			delivered = append(delivered, seq)
			mu.Unlock()
		},
	})
	writer := rtpstypes.GUID{}
	rr.MatchWriter(writer)

	rr.OnData(writer, 1)
	rr.OnData(writer, 3) // out of order, buffered
	rr.OnData(writer, 2) // fills the gap, 2 then 3 deliver

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []rtpstypes.SequenceNumber{1, 2, 3}, delivered)
}

func TestReaderHeartbeatForcesIrrecoverableGap(t *testing.T) {
	rr := reliability.NewReaderReliability(reliability.Config{}, reliability.ReaderHooks{})
	writer := rtpstypes.GUID{}
	rr.MatchWriter(writer)

	rr.OnData(writer, 1)
	rr.OnHeartbeat(writer, 10, 20, false) // writer evicted 2..9

	set := rr.MissingSet(writer)
	require.EqualValues(t, 10, set.Base) // highest_contiguous forced to 9 by the heartbeat's first_available
}

func TestReaderMissingSetReflectsGaps(t *testing.T) {
	rr := reliability.NewReaderReliability(reliability.Config{}, reliability.ReaderHooks{})
	writer := rtpstypes.GUID{}
	rr.MatchWriter(writer)

	rr.OnData(writer, 1)
	rr.OnData(writer, 2)
	rr.OnData(writer, 5)

	set := rr.MissingSet(writer)
	require.True(t, set.Has(3))
	require.True(t, set.Has(4))
	require.False(t, set.Has(5))
}

func TestWriterAckNackSchedulesImmediateRetransmitOnFirstNack(t *testing.T) {
	var mu sync.Mutex
	var retransmitted []rtpstypes.SequenceNumber

	wr := reliability.NewWriterReliability(reliability.Config{}, nil, reliability.WriterHooks{
		HasSample: func(rtpstypes.SequenceNumber) bool { return true },
		Retransmit: func(_ rtpstypes.GUID, seqs []rtpstypes.SequenceNumber) {
			mu.Lock()
			retransmitted = append(retransmitted, seqs...)
			mu.Unlock()
		},
	})
	reader := rtpstypes.GUID{}
	require.NoError(t, wr.MatchReader(reader, 1))
	wr.OnWrite(10)

	set := rtpstypes.NewSequenceNumberSet(5, 1)
	set.Set(5)
	wr.OnAckNack(reader, set)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []rtpstypes.SequenceNumber{5}, retransmitted)
}

func TestWriterAckNackReportsGapForEvictedSample(t *testing.T) {
	var mu sync.Mutex
	var gapped bool

	wr := reliability.NewWriterReliability(reliability.Config{}, nil, reliability.WriterHooks{
		HasSample: func(rtpstypes.SequenceNumber) bool { return false },
		SendGap: func(_ rtpstypes.GUID, _ rtpstypes.SequenceNumber, _ rtpstypes.SequenceNumberSet) {
			mu.Lock()
			gapped = true
			mu.Unlock()
		},
	})
	reader := rtpstypes.GUID{}
	require.NoError(t, wr.MatchReader(reader, 1))

	set := rtpstypes.NewSequenceNumberSet(3, 1)
	set.Set(3)
	wr.OnAckNack(reader, set)

	mu.Lock()
	defer mu.Unlock()
	require.True(t, gapped)
}
