// Package rtps implements the RTPS wire framing layer (§4.2): message
// headers, the submessage interpreter, and the ParameterList encoding
// used for inline QoS and SEDP payloads.
package rtps

import (
	"github.com/hdds-io/hdds/internal/hddserr"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

var magic = [4]byte{'R', 'T', 'P', 'S'}

// ProtocolVersion is the RTPS wire version HDDS speaks (§6 "RTPS v2.5").
var ProtocolVersion = [2]byte{2, 5}

// VendorID is HDDS's own registered vendor id, emitted in every message it
// produces (§6 "Vendor quirks"). The value equals VendorFastDDS in
// dialect.go, which has no dialect-table entry, so DialectFor returns the
// strict zero Dialect for it.
var VendorID = [2]byte{0x01, 0x0f}

// Header is the fixed 20-byte RTPS message header.
type Header struct {
	Version    [2]byte
	VendorID   [2]byte
	GuidPrefix rtpstypes.GuidPrefix
}

const HeaderLen = 4 + 2 + 2 + 12

// ParseHeader reads the fixed header from the front of a datagram.
func ParseHeader(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderLen {
		return Header{}, nil, hddserr.New("rtps.ParseHeader", hddserr.Protocol, "truncated: %d bytes", len(buf))
	}
	if [4]byte(buf[0:4]) != magic {
		return Header{}, nil, hddserr.New("rtps.ParseHeader", hddserr.Protocol, "bad magic")
	}
	var h Header
	copy(h.Version[:], buf[4:6])
	copy(h.VendorID[:], buf[6:8])
	copy(h.GuidPrefix[:], buf[8:20])
	return h, buf[HeaderLen:], nil
}

// WriteHeader appends the fixed header to buf.
func WriteHeader(buf []byte, prefix rtpstypes.GuidPrefix) []byte {
	buf = append(buf, magic[:]...)
	buf = append(buf, ProtocolVersion[:]...)
	buf = append(buf, VendorID[:]...)
	buf = append(buf, prefix[:]...)
	return buf
}
