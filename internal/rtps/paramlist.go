package rtps

import (
	"encoding/binary"

	"github.com/hdds-io/hdds/internal/hddserr"
)

// ParameterID is a well-known (or vendor-private) key in a ParameterList
// (§4.2).
type ParameterID uint16

const (
	PidPad                     ParameterID = 0x0000
	PidParticipantLeaseDuration ParameterID = 0x0002
	PidTopicName               ParameterID = 0x0005
	PidTypeName                ParameterID = 0x0007
	PidUnicastLocator          ParameterID = 0x002f
	PidMulticastLocator        ParameterID = 0x0030
	PidEndpointGUID            ParameterID = 0x005a
	PidKeyHash                 ParameterID = 0x0070
	PidStatusInfo              ParameterID = 0x0071
	PidSentinel                ParameterID = 0x0001
)

// Parameter is one (pid, raw value bytes) entry. Values are kept as raw
// bytes at this layer; typed accessors live in internal/discovery, which
// knows how to interpret each standard PID.
type Parameter struct {
	ID    ParameterID
	Value []byte
}

// ParameterList is an ordered sequence of Parameters, terminated on the
// wire by PID_SENTINEL. Unknown PIDs are kept verbatim so they can be
// re-announced unchanged (§4.2, §9 open question on PID preservation).
type ParameterList struct {
	Params []Parameter
}

// Get returns the first parameter with the given id, if present.
func (pl ParameterList) Get(id ParameterID) ([]byte, bool) {
	for _, p := range pl.Params {
		if p.ID == id {
			return p.Value, true
		}
	}
	return nil, false
}

// Set replaces (or appends) the parameter with the given id.
func (pl *ParameterList) Set(id ParameterID, value []byte) {
	for i := range pl.Params {
		if pl.Params[i].ID == id {
			pl.Params[i].Value = value
			return
		}
	}
	pl.Params = append(pl.Params, Parameter{ID: id, Value: value})
}

// Encode serializes the list using 4-byte-aligned (pid,length,value)
// entries, terminated by PID_SENTINEL, in the byte order given.
func (pl ParameterList) Encode(littleEndian bool) []byte {
	order := binary.ByteOrder(binary.BigEndian)
	if littleEndian {
		order = binary.LittleEndian
	}
	var buf []byte
	for _, p := range pl.Params {
		buf = appendAligned4(buf)
		var hdr [4]byte
		order.PutUint16(hdr[0:2], uint16(p.ID))
		order.PutUint16(hdr[2:4], uint16(len(p.Value)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, p.Value...)
	}
	buf = appendAligned4(buf)
	var sentinel [4]byte
	order.PutUint16(sentinel[0:2], uint16(PidSentinel))
	buf = append(buf, sentinel[:]...)
	return buf
}

func appendAligned4(buf []byte) []byte {
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// DecodeParameterList parses a ParameterList from buf, stopping at
// PID_SENTINEL and returning the bytes following it.
func DecodeParameterList(buf []byte, littleEndian bool) (ParameterList, []byte, error) {
	order := binary.ByteOrder(binary.BigEndian)
	if littleEndian {
		order = binary.LittleEndian
	}
	var pl ParameterList
	start := len(buf)
	for {
		for (start-len(buf))%4 != 0 && len(buf) > 0 {
			buf = buf[1:]
		}
		if len(buf) < 4 {
			return pl, nil, hddserr.New("rtps.DecodeParameterList", hddserr.Protocol, "truncated: missing PID_SENTINEL")
		}
		id := ParameterID(order.Uint16(buf[0:2]))
		length := int(order.Uint16(buf[2:4]))
		buf = buf[4:]
		if id == PidSentinel {
			return pl, buf, nil
		}
		if length > len(buf) {
			return pl, nil, hddserr.New("rtps.DecodeParameterList", hddserr.Protocol, "truncated: parameter length %d exceeds remaining %d", length, len(buf))
		}
		value := make([]byte, length)
		copy(value, buf[:length])
		pl.Params = append(pl.Params, Parameter{ID: id, Value: value})
		buf = buf[length:]
	}
}
