package rtps

import (
	"time"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// DecodeContext carries the mutable state a left-to-right submessage
// interpreter threads through one RTPS message: INFO_TS sets the
// timestamp applied to the DATA submessages that follow it, INFO_SRC
// overrides the prefix/vendor attributed to subsequent submessages, and
// INFO_DST scopes them to a specific destination participant (§4.2).
// A fresh DecodeContext is seeded from the message Header and reset for
// every new datagram; it must not be shared across messages.
type DecodeContext struct {
	SourcePrefix      rtpstypes.GuidPrefix
	SourceVendorID    [2]byte
	DestPrefix        rtpstypes.GuidPrefix
	Timestamp         time.Time
	HasTimestamp      bool
	ReplyLocatorsSet  bool
	UnicastReplyLoc   rtpstypes.Locator
	MulticastReplyLoc rtpstypes.Locator
}

// NewDecodeContext seeds a context from a parsed message header; the
// header's GuidPrefix is the default attribution until an INFO_SRC
// submessage overrides it.
func NewDecodeContext(h Header) *DecodeContext {
	return &DecodeContext{
		SourcePrefix:   h.GuidPrefix,
		SourceVendorID: h.VendorID,
	}
}

// ApplyInfoTS updates the context's effective timestamp, or clears it
// when the submessage carries the INVALID_TIME sentinel (§4.2).
func (c *DecodeContext) ApplyInfoTS(t time.Time, valid bool) {
	c.HasTimestamp = valid
	if valid {
		c.Timestamp = t
	}
}

// ApplyInfoSrc overrides attribution for subsequent submessages in this
// message.
func (c *DecodeContext) ApplyInfoSrc(prefix rtpstypes.GuidPrefix, vendor [2]byte) {
	c.SourcePrefix = prefix
	c.SourceVendorID = vendor
}

// ApplyInfoDst scopes subsequent submessages to the given destination
// participant prefix.
func (c *DecodeContext) ApplyInfoDst(prefix rtpstypes.GuidPrefix) {
	c.DestPrefix = prefix
}

// ApplyInfoReply records the locators subsequent ACKNACK/NACK_FRAG
// submessages in this message should be answered on.
func (c *DecodeContext) ApplyInfoReply(unicast, multicast rtpstypes.Locator, hasMulticast bool) {
	c.ReplyLocatorsSet = true
	c.UnicastReplyLoc = unicast
	if hasMulticast {
		c.MulticastReplyLoc = multicast
	}
}
