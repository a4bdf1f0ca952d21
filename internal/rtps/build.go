package rtps

import (
	"encoding/binary"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// BuildData frames a DATA submessage body in the exact layout decodeData
// expects back: extraFlags(2) + octetsToInlineQoS(2) + readerId(4) +
// writerId(4) + writerSN(8), then an optional inline-QoS parameter list,
// then the payload (serialized CDR, encapsulation preamble included).
func BuildData(readerID, writerID rtpstypes.EntityId, sn rtpstypes.SequenceNumber, inlineQoS *ParameterList, payload []byte, keyOnly, littleEndian bool) []byte {
	order := byteOrderFor(littleEndian)

	body := make([]byte, 20)
	// extraFlags left zero; octetsToInlineQoS patched below.
	copy(body[4:8], readerID[:])
	copy(body[8:12], writerID[:])
	order.PutUint32(body[12:16], uint32(sn.High()))
	order.PutUint32(body[16:20], sn.Low())

	// octetsToInlineQoS is measured from right after that field itself,
	// i.e. body[4:] up to the start of the inline-QoS parameter list (or
	// of the payload when there is none), mirroring decodeData's
	// `4 + octetsToInlineQoS`.
	order.PutUint16(body[2:4], uint16(len(body)-4))

	flags := byte(0)
	if inlineQoS != nil {
		flags |= flagInlineQoS
		body = append(body, inlineQoS.Encode(littleEndian)...)
	}

	if payload != nil {
		if keyOnly {
			flags |= flagKey
		} else {
			flags |= flagData
		}
		body = append(body, payload...)
	}

	return WriteSubmessage(nil, KindData, flags, body, littleEndian)
}

// BuildHeartbeat frames a HEARTBEAT submessage body.
func BuildHeartbeat(readerID, writerID rtpstypes.EntityId, first, last rtpstypes.SequenceNumber, count int32, final, littleEndian bool) []byte {
	order := byteOrderFor(littleEndian)

	body := make([]byte, 28)
	copy(body[0:4], readerID[:])
	copy(body[4:8], writerID[:])
	order.PutUint32(body[8:12], uint32(first.High()))
	order.PutUint32(body[12:16], first.Low())
	order.PutUint32(body[16:20], uint32(last.High()))
	order.PutUint32(body[20:24], last.Low())
	order.PutUint32(body[24:28], uint32(count))

	flags := byte(0)
	if final {
		flags |= flagFinal
	}
	return WriteSubmessage(nil, KindHeartbeat, flags, body, littleEndian)
}

// BuildAckNack frames an ACKNACK submessage body.
func BuildAckNack(readerID, writerID rtpstypes.EntityId, set rtpstypes.SequenceNumberSet, count int32, littleEndian bool) []byte {
	order := byteOrderFor(littleEndian)

	body := make([]byte, 8)
	copy(body[0:4], readerID[:])
	copy(body[4:8], writerID[:])
	body = appendSequenceNumberSet(body, set, order)

	var countBuf [4]byte
	order.PutUint32(countBuf[:], uint32(count))
	body = append(body, countBuf[:]...)

	return WriteSubmessage(nil, KindAckNack, 0, body, littleEndian)
}

// BuildGap frames a GAP submessage body.
func BuildGap(readerID, writerID rtpstypes.EntityId, start rtpstypes.SequenceNumber, set rtpstypes.SequenceNumberSet, littleEndian bool) []byte {
	order := byteOrderFor(littleEndian)

	body := make([]byte, 16)
	copy(body[0:4], readerID[:])
	copy(body[4:8], writerID[:])
	order.PutUint32(body[8:12], uint32(start.High()))
	order.PutUint32(body[12:16], start.Low())
	body = appendSequenceNumberSet(body, set, order)

	return WriteSubmessage(nil, KindGap, 0, body, littleEndian)
}

// appendSequenceNumberSet mirrors decodeSequenceNumberSet's wire layout:
// base (8 bytes), bitmap length in bits (4 bytes), then the bitmap words.
func appendSequenceNumberSet(buf []byte, set rtpstypes.SequenceNumberSet, order binary.ByteOrder) []byte {
	var head [12]byte
	order.PutUint32(head[0:4], uint32(set.Base.High()))
	order.PutUint32(head[4:8], set.Base.Low())
	order.PutUint32(head[8:12], uint32(len(set.Bitmap)*32))
	buf = append(buf, head[:]...)
	for _, word := range set.Bitmap {
		var w [4]byte
		order.PutUint32(w[:], word)
		buf = append(buf, w[:]...)
	}
	return buf
}

func byteOrderFor(littleEndian bool) binary.ByteOrder {
	if littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}
