package rtps_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/rtps"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

func TestHeaderRoundTrip(t *testing.T) {
	prefix := rtpstypes.NewGuidPrefix()
	buf := rtps.WriteHeader(nil, prefix)
	h, rest, err := rtps.ParseHeader(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, prefix, h.GuidPrefix)
	require.Equal(t, rtps.ProtocolVersion, h.Version)
	require.Equal(t, rtps.VendorID, h.VendorID)
}

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	_, _, err := rtps.ParseHeader(make([]byte, 20))
	require.Error(t, err)
}

func TestParameterListRoundTrip(t *testing.T) {
	var pl rtps.ParameterList
	pl.Set(rtps.PidTopicName, []byte("Square\x00"))
	pl.Set(rtps.PidTypeName, []byte("Shapes::Square\x00\x00"))

	buf := pl.Encode(true)
	got, rest, err := rtps.DecodeParameterList(buf, true)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Len(t, got.Params, 2)

	v, ok := got.Get(rtps.PidTopicName)
	require.True(t, ok)
	require.Equal(t, []byte("Square\x00"), v)
}

func TestParameterListPreservesUnknownPID(t *testing.T) {
	var pl rtps.ParameterList
	pl.Set(rtps.ParameterID(0x9001), []byte{0xde, 0xad, 0xbe, 0xef})
	buf := pl.Encode(false)

	got, _, err := rtps.DecodeParameterList(buf, false)
	require.NoError(t, err)
	v, ok := got.Get(rtps.ParameterID(0x9001))
	require.True(t, ok)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, v)
}

func buildDataSubmessage(readerID, writerID rtpstypes.EntityId, sn rtpstypes.SequenceNumber, payload []byte) []byte {
	body := make([]byte, 20)
	binary.BigEndian.PutUint16(body[2:4], 16) // octetsToInlineQos: straight to writerSN end
	copy(body[4:8], readerID[:])
	copy(body[8:12], writerID[:])
	binary.BigEndian.PutUint32(body[12:16], uint32(sn.High()))
	binary.BigEndian.PutUint32(body[16:20], sn.Low())
	body = append(body, payload...)
	return rtps.WriteSubmessage(nil, rtps.KindData, 0x04, body, false)
}

func TestParseMessageDecodesData(t *testing.T) {
	prefix := rtpstypes.NewGuidPrefix()
	writer := rtpstypes.EntityId{0x00, 0x00, 0x01, 0x02}
	reader := rtpstypes.EntityId{0x00, 0x00, 0x00, 0x00}
	sm := buildDataSubmessage(reader, writer, 7, []byte{0xca, 0xfe})

	datagram := rtps.BuildMessage(prefix, [][]byte{sm})
	msg, err := rtps.ParseMessage(datagram)
	require.NoError(t, err)
	require.Len(t, msg.Events, 1)

	ev := msg.Events[0]
	require.Equal(t, rtps.KindData, ev.Kind)
	require.Equal(t, writer, ev.WriterID)
	require.EqualValues(t, 7, ev.WriterSN)
	require.True(t, ev.HasPayload)
	require.Equal(t, []byte{0xca, 0xfe}, ev.Payload)
}

func TestSplitSubmessagesAbortsOnUnknownZeroLength(t *testing.T) {
	buf := []byte{0x7e, 0x00, 0x00, 0x00, 0xff} // unknown kind, length=0, trailing byte
	_, err := rtps.SplitSubmessages(buf)
	require.Error(t, err)
}

func TestDialectForKnownAndUnknownVendor(t *testing.T) {
	require.True(t, rtps.DialectFor(rtps.VendorOpenSplice).TolerateMissingTypeObject)
	require.False(t, rtps.DialectFor([2]byte{0xff, 0xff}).TolerateMissingTypeObject)
}
