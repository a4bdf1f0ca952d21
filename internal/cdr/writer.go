package cdr

import (
	"encoding/binary"
	"math"
)

// Writer accumulates an encoded payload, tracking the alignment domain
// required by §4.1: XCDR1 aligns each primitive to min(size,8); XCDR2
// aligns to min(size,4) and re-bases alignment after a DHEADER.
type Writer struct {
	buf   []byte
	order binary.ByteOrder
	xcdr2 bool
	base  int // offset subtracted before computing alignment, reset at DHEADER boundaries
}

// NewWriter starts a Writer for the given encapsulation, with buf as the
// pre-existing prefix (typically already holding the 4-byte preamble).
func NewWriter(buf []byte, enc Encapsulation) *Writer {
	return &Writer{buf: buf, order: enc.byteOrder(), xcdr2: enc.IsXCDR2()}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) maxAlign() int {
	if w.xcdr2 {
		return 4
	}
	return 8
}

// Align pads with zero bytes until (len(w.buf)-w.base) is a multiple of
// min(size, maxAlign).
func (w *Writer) Align(size int) {
	if size > w.maxAlign() {
		size = w.maxAlign()
	}
	if size <= 1 {
		return
	}
	pos := len(w.buf) - w.base
	pad := (size - pos%size) % size
	for i := 0; i < pad; i++ {
		w.buf = append(w.buf, 0)
	}
}

// ResetBase re-bases the alignment domain at the current position, used
// immediately after writing a DHEADER (§4.1 "re-bases alignment after a
// DHEADER").
func (w *Writer) ResetBase() { w.base = len(w.buf) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteByte(v byte) { w.buf = append(w.buf, v) }

func (w *Writer) WriteInt16(v int16) {
	w.Align(2)
	var b [2]byte
	w.order.PutUint16(b[:], uint16(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteUint16(v uint16) {
	w.Align(2)
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteInt32(v int32) {
	w.Align(4)
	var b [4]byte
	w.order.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteUint32(v uint32) {
	w.Align(4)
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteInt64(v int64) {
	w.Align(8)
	var b [8]byte
	w.order.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteUint64(v uint64) {
	w.Align(8)
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteFloat32(v float32) { w.WriteUint32(math.Float32bits(v)) }
func (w *Writer) WriteFloat64(v float64) { w.WriteUint64(math.Float64bits(v)) }

// WriteString writes a UTF-8 string prefixed by its 4-byte length
// (including the trailing NUL, §4.1), in the encapsulation's byte order.
func (w *Writer) WriteString(s string) {
	w.WriteUint32(uint32(len(s) + 1))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// WriteWString writes a u16-code-unit-count-prefixed wide string.
func (w *Writer) WriteWString(units []uint16) {
	w.WriteUint32(uint32(len(units)))
	for _, u := range units {
		w.WriteUint16(u)
	}
}

// WriteRawBytes appends unaligned raw bytes (e.g. opaque octet sequences).
func (w *Writer) WriteRawBytes(b []byte) { w.buf = append(w.buf, b...) }

// DHeaderPlaceholder reserves 4 bytes for a DHEADER and returns the index
// to patch once the delimited member's length is known.
func (w *Writer) DHeaderPlaceholder() int {
	w.Align(4)
	idx := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	return idx
}

// PatchDHeader fills in the DHEADER at idx with the number of bytes
// written since just after idx.
func (w *Writer) PatchDHeader(idx int) {
	length := uint32(len(w.buf) - idx - 4)
	w.order.PutUint32(w.buf[idx:idx+4], length)
}
