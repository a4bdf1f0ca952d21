package cdr

import (
	"encoding/binary"
	"math"

	"github.com/hdds-io/hdds/internal/hddserr"
)

// Reader walks an encoded payload, mirroring Writer's alignment rules.
type Reader struct {
	buf   []byte
	pos   int
	base  int
	order binary.ByteOrder
	xcdr2 bool
}

// NewReader starts a Reader over buf (already past the 4-byte preamble)
// for the given encapsulation.
func NewReader(buf []byte, enc Encapsulation) *Reader {
	return &Reader{buf: buf, order: enc.byteOrder(), xcdr2: enc.IsXCDR2()}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) maxAlign() int {
	if r.xcdr2 {
		return 4
	}
	return 8
}

func (r *Reader) align(size int) error {
	if size > r.maxAlign() {
		size = r.maxAlign()
	}
	if size <= 1 {
		return nil
	}
	rel := r.pos - r.base
	pad := (size - rel%size) % size
	if r.pos+pad > len(r.buf) {
		return hddserr.New("cdr.Reader.align", hddserr.Protocol, "misaligned: truncated padding")
	}
	for i := 0; i < pad; i++ {
		if r.buf[r.pos] != 0 {
			return hddserr.New("cdr.Reader.align", hddserr.Protocol, "misaligned: non-zero pad byte")
		}
		r.pos++
	}
	return nil
}

// ResetBase re-bases the alignment domain, mirroring Writer.ResetBase.
func (r *Reader) ResetBase() { r.base = r.pos }

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return hddserr.New("cdr.Reader", hddserr.Protocol, "truncated: need %d have %d", n, r.Remaining())
	}
	return nil
}

func (r *Reader) ReadBool() (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}
	v := r.buf[r.pos] != 0
	r.pos++
	return v, nil
}

func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadInt16() (int16, error) {
	if err := r.align(2); err != nil {
		return 0, err
	}
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := int16(r.order.Uint16(r.buf[r.pos:]))
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.align(2); err != nil {
		return 0, err
	}
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := r.order.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadInt32() (int32, error) {
	if err := r.align(4); err != nil {
		return 0, err
	}
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := int32(r.order.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.align(4); err != nil {
		return 0, err
	}
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadInt64() (int64, error) {
	if err := r.align(8); err != nil {
		return 0, err
	}
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := int64(r.order.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.align(8); err != nil {
		return 0, err
	}
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := r.order.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadString reads a 4-byte-length-prefixed UTF-8 string (length includes
// the trailing NUL, which is stripped from the returned value).
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", hddserr.New("cdr.Reader.ReadString", hddserr.Protocol, "value_out_of_range: zero-length string missing NUL")
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.pos : r.pos+int(n)-1])
	r.pos += int(n)
	return s, nil
}

// ReadWString reads a u16-code-unit-count-prefixed wide string.
func (r *Reader) ReadWString() ([]uint16, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := range out {
		u, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}

// ReadRawBytes reads n unaligned raw bytes.
func (r *Reader) ReadRawBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadDHeader reads a DHEADER and returns the byte length of the member
// it delimits.
func (r *Reader) ReadDHeader() (uint32, error) {
	if err := r.align(4); err != nil {
		return 0, err
	}
	return r.ReadUint32()
}

// Skip advances the cursor by n bytes without interpreting them, used to
// skip unknown PL members and unknown submessages with a known length.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}
