package rtps_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/rtps"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

func TestBuildDataRoundTripsThroughParseMessage(t *testing.T) {
	prefix := rtpstypes.NewGuidPrefix()
	writer := rtpstypes.EntityId{0x00, 0x00, 0x01, 0x02}
	reader := rtpstypes.EntityId{0x00, 0x00, 0x00, 0x00}

	sm := rtps.BuildData(reader, writer, 7, nil, []byte{0xca, 0xfe}, false, false)
	datagram := rtps.BuildMessage(prefix, [][]byte{sm})

	msg, err := rtps.ParseMessage(datagram)
	require.NoError(t, err)
	require.Len(t, msg.Events, 1)

	ev := msg.Events[0]
	require.Equal(t, rtps.KindData, ev.Kind)
	require.Equal(t, writer, ev.WriterID)
	require.EqualValues(t, 7, ev.WriterSN)
	require.True(t, ev.HasPayload)
	require.False(t, ev.KeyOnly)
	require.Equal(t, []byte{0xca, 0xfe}, ev.Payload)
}

func TestBuildDataWithInlineQoSRoundTrips(t *testing.T) {
	prefix := rtpstypes.NewGuidPrefix()
	writer := rtpstypes.EntityId{0x00, 0x00, 0x01, 0x02}
	reader := rtpstypes.EntityId{0x00, 0x00, 0x00, 0x00}

	var pl rtps.ParameterList
	pl.Set(rtps.PidKeyHash, []byte{0x01, 0x02, 0x03, 0x04})

	sm := rtps.BuildData(reader, writer, 3, &pl, []byte{0x01}, true, true)
	datagram := rtps.BuildMessage(prefix, [][]byte{sm})

	msg, err := rtps.ParseMessage(datagram)
	require.NoError(t, err)
	require.Len(t, msg.Events, 1)

	ev := msg.Events[0]
	require.True(t, ev.HasInlineQoS)
	require.True(t, ev.KeyOnly)
	got, ok := ev.InlineQoS.Get(rtps.PidKeyHash)
	require.True(t, ok)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, got)
}

func TestBuildHeartbeatRoundTrips(t *testing.T) {
	prefix := rtpstypes.NewGuidPrefix()
	writer := rtpstypes.EntityId{0x00, 0x00, 0x01, 0x02}
	reader := rtpstypes.EntityId{0x00, 0x00, 0x00, 0x00}

	sm := rtps.BuildHeartbeat(reader, writer, 1, 10, 4, true, false)
	datagram := rtps.BuildMessage(prefix, [][]byte{sm})

	msg, err := rtps.ParseMessage(datagram)
	require.NoError(t, err)
	require.Len(t, msg.Events, 1)

	ev := msg.Events[0]
	require.Equal(t, rtps.KindHeartbeat, ev.Kind)
	require.EqualValues(t, 1, ev.FirstSN)
	require.EqualValues(t, 10, ev.LastSN)
	require.EqualValues(t, 4, ev.Count)
	require.True(t, ev.Final)
}

func TestBuildAckNackRoundTrips(t *testing.T) {
	prefix := rtpstypes.NewGuidPrefix()
	writer := rtpstypes.EntityId{0x00, 0x00, 0x01, 0x02}
	reader := rtpstypes.EntityId{0x00, 0x00, 0x00, 0x00}

	set := rtpstypes.NewSequenceNumberSet(5, 8)
	set.Set(6)
	set.Set(9)

	sm := rtps.BuildAckNack(reader, writer, set, 2, false)
	datagram := rtps.BuildMessage(prefix, [][]byte{sm})

	msg, err := rtps.ParseMessage(datagram)
	require.NoError(t, err)
	require.Len(t, msg.Events, 1)

	ev := msg.Events[0]
	require.Equal(t, rtps.KindAckNack, ev.Kind)
	require.EqualValues(t, 2, ev.Count)
	require.True(t, ev.ReaderSNState.Has(6))
	require.True(t, ev.ReaderSNState.Has(9))
	require.False(t, ev.ReaderSNState.Has(7))
}

func TestBuildGapRoundTrips(t *testing.T) {
	prefix := rtpstypes.NewGuidPrefix()
	writer := rtpstypes.EntityId{0x00, 0x00, 0x01, 0x02}
	reader := rtpstypes.EntityId{0x00, 0x00, 0x00, 0x00}

	set := rtpstypes.NewSequenceNumberSet(37, 8)
	set.Set(37)

	sm := rtps.BuildGap(reader, writer, 37, set, false)
	datagram := rtps.BuildMessage(prefix, [][]byte{sm})

	msg, err := rtps.ParseMessage(datagram)
	require.NoError(t, err)
	require.Len(t, msg.Events, 1)

	ev := msg.Events[0]
	require.Equal(t, rtps.KindGap, ev.Kind)
	require.EqualValues(t, 37, ev.GapStart)
	require.True(t, ev.GapSet.Has(37))
}
