package cdr

import (
	"fmt"

	"github.com/hdds-io/hdds/internal/hddserr"
	"github.com/hdds-io/hdds/internal/typedesc"
)

// MapEntry is one (key, value) pair of a KindMap value, kept as an
// ordered slice (rather than a Go map) so map encoding is deterministic
// in key-insertion order, as §4.1 requires.
type MapEntry struct {
	Key   any
	Value any
}

// Union is the dynamic representation of a KindUnion value: Disc selects
// the active case via typedesc.Member.UnionLabel, Value holds that case's
// payload.
type Union struct {
	Disc  int32
	Value any
}

const pidSentinel uint16 = 0x3f02

// Encode returns a Writer over a freshly allocated buffer that already
// carries the native encapsulation preamble for d's extensibility
// (§4.1); no value is encoded into it yet.
func Encode(d *typedesc.Descriptor) (*Writer, error) {
	enc := NativeEncapsulation(d.Extensibility == typedesc.Mutable, d.Extensibility == typedesc.Appendable)
	buf := WritePreamble(nil, enc)
	return NewWriter(buf, enc), nil
}

// EncodeValue encodes v against descriptor d using enc, returning the full
// wire buffer (preamble included).
func EncodeValue(d *typedesc.Descriptor, v any, enc Encapsulation) ([]byte, error) {
	w := NewWriter(WritePreamble(nil, enc), enc)
	if err := encodeValue(w, d, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeValue decodes buf (preamble included) against descriptor d,
// returning the dynamic value described on the type conventions below.
//
// Dynamic value conventions:
//   - primitives map to their natural Go type (bool, byte, int16, int32,
//     int64, uint16, uint32, uint64, float32, float64, string, []uint16)
//   - KindArray/KindSequence map to []any
//   - KindMap maps to []MapEntry (ordered)
//   - KindStruct/KindBitset map to map[string]any keyed by member name
//   - KindUnion maps to Union
//   - KindEnum/KindBitmask map to int32
//   - an Optional member's absence is represented by a nil entry
func DecodeValue(d *typedesc.Descriptor, buf []byte) (any, error) {
	enc, rest, err := ReadPreamble(buf)
	if err != nil {
		return nil, err
	}
	r := NewReader(rest, enc)
	v, err := decodeValue(r, d, enc)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func encodeValue(w *Writer, d *typedesc.Descriptor, v any) error {
	switch d.Kind {
	case typedesc.KindBool:
		b, ok := v.(bool)
		if !ok {
			return typeMismatch("bool", v)
		}
		w.WriteBool(b)
	case typedesc.KindByte:
		b, ok := v.(byte)
		if !ok {
			return typeMismatch("byte", v)
		}
		w.WriteByte(b)
	case typedesc.KindInt16:
		n, ok := v.(int16)
		if !ok {
			return typeMismatch("int16", v)
		}
		w.WriteInt16(n)
	case typedesc.KindInt32, typedesc.KindEnum, typedesc.KindBitmask:
		n, ok := toInt32(v)
		if !ok {
			return typeMismatch("int32", v)
		}
		w.WriteInt32(n)
	case typedesc.KindInt64:
		n, ok := v.(int64)
		if !ok {
			return typeMismatch("int64", v)
		}
		w.WriteInt64(n)
	case typedesc.KindUint16:
		n, ok := v.(uint16)
		if !ok {
			return typeMismatch("uint16", v)
		}
		w.WriteUint16(n)
	case typedesc.KindUint32:
		n, ok := v.(uint32)
		if !ok {
			return typeMismatch("uint32", v)
		}
		w.WriteUint32(n)
	case typedesc.KindUint64:
		n, ok := v.(uint64)
		if !ok {
			return typeMismatch("uint64", v)
		}
		w.WriteUint64(n)
	case typedesc.KindFloat32:
		f, ok := v.(float32)
		if !ok {
			return typeMismatch("float32", v)
		}
		w.WriteFloat32(f)
	case typedesc.KindFloat64:
		f, ok := v.(float64)
		if !ok {
			return typeMismatch("float64", v)
		}
		w.WriteFloat64(f)
	case typedesc.KindString:
		s, ok := v.(string)
		if !ok {
			return typeMismatch("string", v)
		}
		if d.Bound > 0 && len(s) > d.Bound {
			return hddserr.New("cdr.encode", hddserr.Protocol, "value_out_of_range: string exceeds bound %d", d.Bound)
		}
		w.WriteString(s)
	case typedesc.KindWString:
		units, ok := v.([]uint16)
		if !ok {
			return typeMismatch("[]uint16", v)
		}
		w.WriteWString(units)
	case typedesc.KindArray:
		return encodeArray(w, d, v, true)
	case typedesc.KindSequence:
		return encodeArray(w, d, v, false)
	case typedesc.KindMap:
		return encodeMap(w, d, v)
	case typedesc.KindStruct, typedesc.KindBitset:
		return encodeStruct(w, d, v)
	case typedesc.KindUnion:
		return encodeUnion(w, d, v)
	default:
		return hddserr.New("cdr.encode", hddserr.InvalidArgument, "unsupported kind %v", d.Kind)
	}
	return nil
}

func encodeArray(w *Writer, d *typedesc.Descriptor, v any, fixed bool) error {
	elems, ok := v.([]any)
	if !ok {
		return typeMismatch("[]any", v)
	}
	if fixed && len(elems) != d.Bound {
		return hddserr.New("cdr.encode", hddserr.Protocol, "value_out_of_range: array expects %d elements got %d", d.Bound, len(elems))
	}
	if !fixed {
		if d.Bound > 0 && len(elems) > d.Bound {
			return hddserr.New("cdr.encode", hddserr.Protocol, "value_out_of_range: sequence exceeds bound %d", d.Bound)
		}
		w.WriteUint32(uint32(len(elems)))
	}
	for _, e := range elems {
		if err := encodeValue(w, d.Elem, e); err != nil {
			return err
		}
	}
	return nil
}

func encodeMap(w *Writer, d *typedesc.Descriptor, v any) error {
	entries, ok := v.([]MapEntry)
	if !ok {
		return typeMismatch("[]MapEntry", v)
	}
	if d.Bound > 0 && len(entries) > d.Bound {
		return hddserr.New("cdr.encode", hddserr.Protocol, "value_out_of_range: map exceeds bound %d", d.Bound)
	}
	w.WriteUint32(uint32(len(entries)))
	for _, e := range entries {
		if err := encodeValue(w, d.KeyType, e.Key); err != nil {
			return err
		}
		if err := encodeValue(w, d.Elem, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func encodeStruct(w *Writer, d *typedesc.Descriptor, v any) error {
	fields, ok := v.(map[string]any)
	if !ok {
		return typeMismatch("map[string]any", v)
	}
	switch d.Extensibility {
	case typedesc.Mutable:
		return encodeMutable(w, d, fields)
	case typedesc.Appendable:
		idx := w.DHeaderPlaceholder()
		w.ResetBase()
		if err := encodeFinalMembers(w, d, fields); err != nil {
			return err
		}
		w.PatchDHeader(idx)
		return nil
	default:
		return encodeFinalMembers(w, d, fields)
	}
}

func encodeFinalMembers(w *Writer, d *typedesc.Descriptor, fields map[string]any) error {
	for _, m := range d.Members {
		v, present := fields[m.Name]
		if m.Optional {
			w.WriteBool(present && v != nil)
			if !present || v == nil {
				continue
			}
		} else if !present {
			return hddserr.New("cdr.encode", hddserr.Protocol, "type_mismatch: missing required member %q", m.Name)
		}
		if err := encodeValue(w, m.Type, v); err != nil {
			return fmt.Errorf("member %q: %w", m.Name, err)
		}
	}
	return nil
}

// encodeMutable serializes each present member as an EMHEADER (member id,
// byte length) followed by its value, in the same (pid, length, value)
// shape as a ParameterList entry (§4.2), terminated by PID_SENTINEL.
func encodeMutable(w *Writer, d *typedesc.Descriptor, fields map[string]any) error {
	for _, m := range d.Members {
		v, present := fields[m.Name]
		if !present || v == nil {
			continue
		}
		inner := NewWriter(nil, CDR2_LE)
		if err := encodeValue(inner, m.Type, v); err != nil {
			return fmt.Errorf("member %q: %w", m.Name, err)
		}
		body := inner.Bytes()
		w.Align(4)
		w.WriteUint16(uint16(m.ID))
		w.WriteUint16(uint16(len(body)))
		w.WriteRawBytes(body)
	}
	w.Align(4)
	w.WriteUint16(pidSentinel)
	w.WriteUint16(0)
	return nil
}

func encodeUnion(w *Writer, d *typedesc.Descriptor, v any) error {
	u, ok := v.(Union)
	if !ok {
		return typeMismatch("cdr.Union", v)
	}
	w.WriteInt32(u.Disc)
	member := selectUnionMember(d, u.Disc)
	if member == nil {
		return hddserr.New("cdr.encode", hddserr.Protocol, "type_mismatch: no union case for discriminator %d", u.Disc)
	}
	return encodeValue(w, member.Type, u.Value)
}

func selectUnionMember(d *typedesc.Descriptor, disc int32) *typedesc.Member {
	var def *typedesc.Member
	for i := range d.Members {
		m := &d.Members[i]
		if m.UnionLabel == nil {
			def = m
			continue
		}
		for _, l := range m.UnionLabel {
			if l == disc {
				return m
			}
		}
	}
	return def
}

func typeMismatch(want string, got any) error {
	return hddserr.New("cdr.encode", hddserr.Protocol, "type_mismatch: want %s got %T", want, got)
}

func toInt32(v any) (int32, bool) {
	switch n := v.(type) {
	case int32:
		return n, true
	case int:
		return int32(n), true
	}
	return 0, false
}
