package rtps

import (
	"encoding/binary"

	"github.com/hdds-io/hdds/internal/hddserr"
)

// SubmessageKind is the 1-byte submessage id (§4.2).
type SubmessageKind byte

const (
	KindPad           SubmessageKind = 0x01
	KindAckNack       SubmessageKind = 0x06
	KindHeartbeat     SubmessageKind = 0x07
	KindGap           SubmessageKind = 0x08
	KindInfoTS        SubmessageKind = 0x09
	KindInfoSrc       SubmessageKind = 0x0c
	KindInfoDst       SubmessageKind = 0x0e
	KindInfoReply     SubmessageKind = 0x0f
	KindNackFrag      SubmessageKind = 0x12
	KindHeartbeatFrag SubmessageKind = 0x13
	KindData          SubmessageKind = 0x15
	KindDataFrag      SubmessageKind = 0x16
	KindSecBody       SubmessageKind = 0x30
	KindSecPrefix     SubmessageKind = 0x31
	KindSecPostfix    SubmessageKind = 0x32
)

func (k SubmessageKind) known() bool {
	switch k {
	case KindPad, KindAckNack, KindHeartbeat, KindGap, KindInfoTS, KindInfoSrc, KindInfoDst,
		KindInfoReply, KindNackFrag, KindHeartbeatFrag, KindData, KindDataFrag,
		KindSecBody, KindSecPrefix, KindSecPostfix:
		return true
	default:
		return false
	}
}

// FlagEndianness is bit 0 of every submessage's flags byte: set means the
// submessage body (and its length field) is little-endian.
const FlagEndianness byte = 0x01

// RawSubmessage is one parsed submessage: its kind, flags, and body bytes
// (length already consumed). SplitSubmessages skips submessages of
// unknown kind; the only one it surfaces is a zero-length submessage of
// unknown kind at the very end of the message, with an empty body.
type RawSubmessage struct {
	Kind  SubmessageKind
	Flags byte
	Body  []byte
}

func (s RawSubmessage) LittleEndian() bool { return s.Flags&FlagEndianness != 0 }

func (s RawSubmessage) byteOrder() binary.ByteOrder {
	if s.LittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// SplitSubmessages walks buf (the bytes following the RTPS header) and
// returns each submessage in order. An unknown kind with a well-formed
// (non-zero, in-bounds) length is skipped; an unknown kind whose length
// is zero (meaning "extends to end of message", valid only for the last
// submessage) before the actual end of buf aborts the packet, since the
// interpreter cannot know where the next submessage begins (§4.2).
func SplitSubmessages(buf []byte) ([]RawSubmessage, error) {
	var out []RawSubmessage
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, hddserr.New("rtps.SplitSubmessages", hddserr.Protocol, "truncated submessage header")
		}
		id := SubmessageKind(buf[0])
		flags := buf[1]
		var order binary.ByteOrder = binary.BigEndian
		if flags&FlagEndianness != 0 {
			order = binary.LittleEndian
		}
		length := int(order.Uint16(buf[2:4]))
		buf = buf[4:]

		if length == 0 {
			// Extends to the end of the message; only valid as the final
			// submessage or for known zero-body kinds like PAD.
			if id.known() || len(buf) == 0 {
				out = append(out, RawSubmessage{Kind: id, Flags: flags, Body: buf})
				buf = nil
				break
			}
			return nil, hddserr.New("rtps.SplitSubmessages", hddserr.Protocol,
				"unknown submessage kind %#02x with unresolvable length aborts packet", id)
		}

		if length > len(buf) {
			return nil, hddserr.New("rtps.SplitSubmessages", hddserr.Protocol, "truncated: submessage length %d exceeds remaining %d", length, len(buf))
		}
		if !id.known() {
			// Known length: skip and continue (§4.2).
			buf = buf[length:]
			continue
		}
		out = append(out, RawSubmessage{Kind: id, Flags: flags, Body: buf[:length]})
		buf = buf[length:]
	}
	return out, nil
}

// WriteSubmessage appends a framed submessage to buf.
func WriteSubmessage(buf []byte, kind SubmessageKind, flags byte, body []byte, littleEndian bool) []byte {
	if littleEndian {
		flags |= FlagEndianness
	} else {
		flags &^= FlagEndianness
	}
	var hdr [4]byte
	hdr[0] = byte(kind)
	hdr[1] = flags
	order := binary.ByteOrder(binary.BigEndian)
	if littleEndian {
		order = binary.LittleEndian
	}
	order.PutUint16(hdr[2:4], uint16(len(body)))
	buf = append(buf, hdr[:]...)
	buf = append(buf, body...)
	return buf
}
