package rtps

// VendorKey identifies an RTPS implementation by its (major, minor)
// vendor id octets, as carried in every message Header (§6 "Vendor
// quirks").
type VendorKey [2]byte

// Well-known vendor ids assigned by the OMG (§6). HDDS's own id is
// declared in header.go as VendorID.
var (
	VendorRTI          = VendorKey{0x01, 0x01}
	VendorOpenSplice   = VendorKey{0x01, 0x02}
	VendorOpenDDS      = VendorKey{0x01, 0x03}
	VendorCycloneDDS   = VendorKey{0x01, 0x10}
	VendorFastDDS      = VendorKey{0x01, 0x0f}
)

// Dialect captures the decode-only quirks HDDS tolerates from a given
// vendor. These never change what HDDS itself emits; they only relax or
// adjust how incoming traffic from that vendor is interpreted (§6).
type Dialect struct {
	// TolerateMissingTypeObject accepts SEDP publications that omit
	// PID_TYPE_NAME/type-object parameters instead of rejecting them as
	// malformed discovery data.
	TolerateMissingTypeObject bool
	// ZeroLengthStringIsEmpty treats a zero-length CDR string (no
	// NUL-terminator byte at all, rather than a 1-byte NUL) as "" instead
	// of a protocol error; observed from some embedded implementations.
	ZeroLengthStringIsEmpty bool
	// AssumeBigEndianParameterList ignores the submessage endianness flag
	// for ParameterList contents and always decodes them big-endian.
	AssumeBigEndianParameterList bool
}

var dialects = map[VendorKey]Dialect{
	VendorOpenSplice: {TolerateMissingTypeObject: true},
	VendorOpenDDS:    {ZeroLengthStringIsEmpty: true},
}

// DialectFor returns the tolerances to apply when decoding traffic from
// the given vendor id. Unknown or HDDS's own vendor id get the strict
// zero-value Dialect.
func DialectFor(vendor [2]byte) Dialect {
	return dialects[VendorKey(vendor)]
}
