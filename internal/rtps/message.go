package rtps

import (
	"encoding/binary"
	"time"

	"github.com/hdds-io/hdds/internal/hddserr"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// Data flag bits (§4.2).
const (
	flagInlineQoS = 0x02
	flagData      = 0x04
	flagKey       = 0x08
)

// Heartbeat/AckNack flag bits.
const (
	flagFinal = 0x02
	flagLiveliness = 0x04
)

// Gap flag bits share the endianness bit only.

// Event is one decoded submessage, attributed using the DecodeContext in
// effect when it was encountered (§4.2).
type Event struct {
	Kind      SubmessageKind
	SrcPrefix rtpstypes.GuidPrefix
	DstPrefix rtpstypes.GuidPrefix
	Timestamp time.Time

	ReaderID rtpstypes.EntityId
	WriterID rtpstypes.EntityId

	// DATA / DATA_FRAG
	WriterSN     rtpstypes.SequenceNumber
	InlineQoS    ParameterList
	HasInlineQoS bool
	HasPayload   bool
	KeyOnly      bool
	Payload      []byte // raw serialized payload, including its own encapsulation preamble

	// HEARTBEAT
	FirstSN rtpstypes.SequenceNumber
	LastSN  rtpstypes.SequenceNumber
	Count   int32
	Final   bool

	// ACKNACK
	ReaderSNState rtpstypes.SequenceNumberSet

	// GAP
	GapStart rtpstypes.SequenceNumber
	GapSet   rtpstypes.SequenceNumberSet
}

// Message is a fully parsed RTPS packet: its header and the ordered
// events produced by interpreting each submessage against a running
// DecodeContext.
type Message struct {
	Header Header
	Events []Event
}

// ParseMessage parses a full RTPS datagram into a Message. Submessages
// whose kind the interpreter does not recognize were already dropped by
// SplitSubmessages; INFO_* submessages update the running context and do
// not themselves produce an Event.
func ParseMessage(datagram []byte) (*Message, error) {
	header, rest, err := ParseHeader(datagram)
	if err != nil {
		return nil, err
	}
	raws, err := SplitSubmessages(rest)
	if err != nil {
		return nil, err
	}
	ctx := NewDecodeContext(header)
	msg := &Message{Header: header}
	for _, raw := range raws {
		ev, isInfo, err := decodeSubmessage(raw, ctx)
		if err != nil {
			return nil, err
		}
		if isInfo {
			continue
		}
		msg.Events = append(msg.Events, ev)
	}
	return msg, nil
}

func decodeSubmessage(raw RawSubmessage, ctx *DecodeContext) (Event, bool, error) {
	order := raw.byteOrder()
	switch raw.Kind {
	case KindInfoTS:
		valid := raw.Flags&flagInlineQoS == 0 // INFO_TS reuses bit 1 as INVALID_TIME_FLAG
		if valid {
			if len(raw.Body) < 8 {
				return Event{}, true, hddserr.New("rtps.decodeSubmessage", hddserr.Protocol, "truncated INFO_TS")
			}
			sec := int32(order.Uint32(raw.Body[0:4]))
			frac := order.Uint32(raw.Body[4:8])
			ctx.ApplyInfoTS(rtpsTimeToGo(sec, frac), true)
		} else {
			ctx.ApplyInfoTS(time.Time{}, false)
		}
		return Event{}, true, nil

	case KindInfoSrc:
		if len(raw.Body) < 20 {
			return Event{}, true, hddserr.New("rtps.decodeSubmessage", hddserr.Protocol, "truncated INFO_SRC")
		}
		var vendor [2]byte
		copy(vendor[:], raw.Body[6:8])
		var prefix rtpstypes.GuidPrefix
		copy(prefix[:], raw.Body[8:20])
		ctx.ApplyInfoSrc(prefix, vendor)
		return Event{}, true, nil

	case KindInfoDst:
		if len(raw.Body) < 12 {
			return Event{}, true, hddserr.New("rtps.decodeSubmessage", hddserr.Protocol, "truncated INFO_DST")
		}
		var prefix rtpstypes.GuidPrefix
		copy(prefix[:], raw.Body[:12])
		ctx.ApplyInfoDst(prefix)
		return Event{}, true, nil

	case KindInfoReply:
		// Not required for correctness of the reliability protocol; record
		// presence only, full locator decoding happens where it matters.
		return Event{}, true, nil

	case KindData, KindDataFrag:
		ev, err := decodeData(raw, order)
		if err != nil {
			return Event{}, false, err
		}
		ev.Kind = raw.Kind
		ev.SrcPrefix, ev.DstPrefix, ev.Timestamp = ctx.SourcePrefix, ctx.DestPrefix, ctx.Timestamp
		return ev, false, nil

	case KindHeartbeat:
		ev, err := decodeHeartbeat(raw, order)
		if err != nil {
			return Event{}, false, err
		}
		ev.SrcPrefix, ev.DstPrefix = ctx.SourcePrefix, ctx.DestPrefix
		return ev, false, nil

	case KindAckNack:
		ev, err := decodeAckNack(raw, order)
		if err != nil {
			return Event{}, false, err
		}
		ev.SrcPrefix, ev.DstPrefix = ctx.SourcePrefix, ctx.DestPrefix
		return ev, false, nil

	case KindGap:
		ev, err := decodeGap(raw, order)
		if err != nil {
			return Event{}, false, err
		}
		ev.SrcPrefix, ev.DstPrefix = ctx.SourcePrefix, ctx.DestPrefix
		return ev, false, nil

	default:
		// PAD and security submessages carry no reliability-relevant state.
		return Event{Kind: raw.Kind}, true, nil
	}
}

func rtpsTimeToGo(sec int32, frac uint32) time.Time {
	nanos := int64(frac) * 1e9 >> 32
	return time.Unix(int64(sec), nanos).UTC()
}

func decodeData(raw RawSubmessage, order binary.ByteOrder) (Event, error) {
	body := raw.Body
	if len(body) < 20 {
		return Event{}, hddserr.New("rtps.decodeData", hddserr.Protocol, "truncated DATA")
	}
	octetsToInlineQoS := order.Uint16(body[2:4])
	var readerID, writerID rtpstypes.EntityId
	copy(readerID[:], body[4:8])
	copy(writerID[:], body[8:12])
	hi := int32(order.Uint32(body[12:16]))
	lo := order.Uint32(body[16:20])
	sn := rtpstypes.SequenceNumberFromParts(hi, lo)

	cursor := 4 + int(octetsToInlineQoS) // measured from right after the octetsToInlineQoS field itself
	if cursor < 20 || cursor > len(body) {
		return Event{}, hddserr.New("rtps.decodeData", hddserr.Protocol, "bad octetsToInlineQos")
	}

	ev := Event{ReaderID: readerID, WriterID: writerID, WriterSN: sn}

	rest := body[cursor:]
	if raw.Flags&flagInlineQoS != 0 {
		pl, remaining, err := DecodeParameterList(rest, raw.LittleEndian())
		if err != nil {
			return Event{}, err
		}
		ev.InlineQoS = pl
		ev.HasInlineQoS = true
		rest = remaining
	}
	if raw.Flags&flagData != 0 {
		ev.HasPayload = true
		ev.Payload = rest
	} else if raw.Flags&flagKey != 0 {
		ev.HasPayload = true
		ev.KeyOnly = true
		ev.Payload = rest
	}
	return ev, nil
}

func decodeHeartbeat(raw RawSubmessage, order binary.ByteOrder) (Event, error) {
	body := raw.Body
	if len(body) < 28 {
		return Event{}, hddserr.New("rtps.decodeHeartbeat", hddserr.Protocol, "truncated HEARTBEAT")
	}
	var readerID, writerID rtpstypes.EntityId
	copy(readerID[:], body[0:4])
	copy(writerID[:], body[4:8])
	first := rtpstypes.SequenceNumberFromParts(int32(order.Uint32(body[8:12])), order.Uint32(body[12:16]))
	last := rtpstypes.SequenceNumberFromParts(int32(order.Uint32(body[16:20])), order.Uint32(body[20:24]))
	count := int32(order.Uint32(body[24:28]))
	return Event{
		Kind: KindHeartbeat, ReaderID: readerID, WriterID: writerID,
		FirstSN: first, LastSN: last, Count: count,
		Final: raw.Flags&flagFinal != 0,
	}, nil
}

func decodeAckNack(raw RawSubmessage, order binary.ByteOrder) (Event, error) {
	body := raw.Body
	if len(body) < 12 {
		return Event{}, hddserr.New("rtps.decodeAckNack", hddserr.Protocol, "truncated ACKNACK")
	}
	var readerID, writerID rtpstypes.EntityId
	copy(readerID[:], body[0:4])
	copy(writerID[:], body[4:8])
	set, rest, err := decodeSequenceNumberSet(body[8:], order)
	if err != nil {
		return Event{}, err
	}
	var count int32
	if len(rest) >= 4 {
		count = int32(order.Uint32(rest[0:4]))
	}
	return Event{Kind: KindAckNack, ReaderID: readerID, WriterID: writerID, ReaderSNState: set, Count: count}, nil
}

func decodeGap(raw RawSubmessage, order binary.ByteOrder) (Event, error) {
	body := raw.Body
	if len(body) < 20 {
		return Event{}, hddserr.New("rtps.decodeGap", hddserr.Protocol, "truncated GAP")
	}
	var readerID, writerID rtpstypes.EntityId
	copy(readerID[:], body[0:4])
	copy(writerID[:], body[4:8])
	start := rtpstypes.SequenceNumberFromParts(int32(order.Uint32(body[8:12])), order.Uint32(body[12:16]))
	set, _, err := decodeSequenceNumberSet(body[16:], order)
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: KindGap, ReaderID: readerID, WriterID: writerID, GapStart: start, GapSet: set}, nil
}

// decodeSequenceNumberSet reads the wire form of SequenceNumberSet: base
// (8 bytes), bitmap length in bits (4 bytes), then ceil(numBits/32) bitmap
// words.
func decodeSequenceNumberSet(buf []byte, order binary.ByteOrder) (rtpstypes.SequenceNumberSet, []byte, error) {
	if len(buf) < 12 {
		return rtpstypes.SequenceNumberSet{}, nil, hddserr.New("rtps.decodeSequenceNumberSet", hddserr.Protocol, "truncated")
	}
	base := rtpstypes.SequenceNumberFromParts(int32(order.Uint32(buf[0:4])), order.Uint32(buf[4:8]))
	numBits := order.Uint32(buf[8:12])
	words := (int(numBits) + 31) / 32
	if 12+words*4 > len(buf) {
		return rtpstypes.SequenceNumberSet{}, nil, hddserr.New("rtps.decodeSequenceNumberSet", hddserr.Protocol, "truncated bitmap")
	}
	bitmap := make([]uint32, words)
	for i := 0; i < words; i++ {
		off := 12 + i*4
		bitmap[i] = order.Uint32(buf[off : off+4])
	}
	return rtpstypes.SequenceNumberSet{Base: base, Bitmap: bitmap}, buf[12+words*4:], nil
}

// BuildMessage assembles a full RTPS datagram from a header and a set of
// already-framed submessages (produced via WriteSubmessage).
func BuildMessage(prefix rtpstypes.GuidPrefix, submessages [][]byte) []byte {
	buf := WriteHeader(make([]byte, 0, HeaderLen+64), prefix)
	for _, sm := range submessages {
		buf = append(buf, sm...)
	}
	return buf
}
