package cdr

import (
	"github.com/hdds-io/hdds/internal/hddserr"
	"github.com/hdds-io/hdds/internal/typedesc"
)

func decodeValue(r *Reader, d *typedesc.Descriptor, enc Encapsulation) (any, error) {
	switch d.Kind {
	case typedesc.KindBool:
		return r.ReadBool()
	case typedesc.KindByte:
		return r.ReadByte()
	case typedesc.KindInt16:
		return r.ReadInt16()
	case typedesc.KindInt32, typedesc.KindEnum, typedesc.KindBitmask:
		return r.ReadInt32()
	case typedesc.KindInt64:
		return r.ReadInt64()
	case typedesc.KindUint16:
		return r.ReadUint16()
	case typedesc.KindUint32:
		return r.ReadUint32()
	case typedesc.KindUint64:
		return r.ReadUint64()
	case typedesc.KindFloat32:
		return r.ReadFloat32()
	case typedesc.KindFloat64:
		return r.ReadFloat64()
	case typedesc.KindString:
		s, err := r.ReadString()
		if err == nil && d.Bound > 0 && len(s) > d.Bound {
			return nil, hddserr.New("cdr.decode", hddserr.Protocol, "value_out_of_range: string exceeds bound %d", d.Bound)
		}
		return s, err
	case typedesc.KindWString:
		return r.ReadWString()
	case typedesc.KindArray:
		return decodeArray(r, d, enc, d.Bound)
	case typedesc.KindSequence:
		n, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		if d.Bound > 0 && int(n) > d.Bound {
			return nil, hddserr.New("cdr.decode", hddserr.Protocol, "value_out_of_range: sequence exceeds bound %d", d.Bound)
		}
		return decodeArray(r, d, enc, int(n))
	case typedesc.KindMap:
		return decodeMap(r, d, enc)
	case typedesc.KindStruct, typedesc.KindBitset:
		return decodeStruct(r, d, enc)
	case typedesc.KindUnion:
		return decodeUnion(r, d, enc)
	default:
		return nil, hddserr.New("cdr.decode", hddserr.InvalidArgument, "unsupported kind %v", d.Kind)
	}
}

func decodeArray(r *Reader, d *typedesc.Descriptor, enc Encapsulation, n int) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := decodeValue(r, d.Elem, enc)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeMap(r *Reader, d *typedesc.Descriptor, enc Encapsulation) ([]MapEntry, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if d.Bound > 0 && int(n) > d.Bound {
		return nil, hddserr.New("cdr.decode", hddserr.Protocol, "value_out_of_range: map exceeds bound %d", d.Bound)
	}
	out := make([]MapEntry, n)
	for i := range out {
		k, err := decodeValue(r, d.KeyType, enc)
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(r, d.Elem, enc)
		if err != nil {
			return nil, err
		}
		out[i] = MapEntry{Key: k, Value: v}
	}
	return out, nil
}

func decodeStruct(r *Reader, d *typedesc.Descriptor, enc Encapsulation) (map[string]any, error) {
	switch d.Extensibility {
	case typedesc.Mutable:
		return decodeMutable(r, d, enc)
	case typedesc.Appendable:
		if !enc.IsDelimited() {
			// A peer may send an appendable type without a DHEADER under
			// plain XCDR1; fall back to reading exactly the known members.
			return decodeFinalMembers(r, d, enc, -1)
		}
		length, err := r.ReadDHeader()
		if err != nil {
			return nil, err
		}
		r.ResetBase()
		end := r.pos + int(length)
		fields, err := decodeFinalMembers(r, d, enc, end)
		if err != nil {
			return nil, err
		}
		// Suffix trimming (§4.1): a writer of a newer appendable type may
		// have emitted trailing members this reader doesn't know about.
		if r.pos < end {
			r.pos = end
		}
		return fields, nil
	default:
		return decodeFinalMembers(r, d, enc, -1)
	}
}

// decodeFinalMembers decodes the known member list in declaration order.
// If end >= 0, the struct is bounded (appendable DHEADER) and the
// function tolerates the buffer running out early for Optional trailing
// members (treated as absent) without error.
func decodeFinalMembers(r *Reader, d *typedesc.Descriptor, enc Encapsulation, end int) (map[string]any, error) {
	fields := make(map[string]any, len(d.Members))
	for _, m := range d.Members {
		if end >= 0 && r.pos >= end {
			if m.Optional {
				continue
			}
			return nil, hddserr.New("cdr.decode", hddserr.Protocol, "type_mismatch: missing required member %q (final extensibility truncated)", m.Name)
		}
		if m.Optional {
			present, err := r.ReadBool()
			if err != nil {
				return nil, err
			}
			if !present {
				continue
			}
		}
		v, err := decodeValue(r, m.Type, enc)
		if err != nil {
			return nil, err
		}
		fields[m.Name] = v
	}
	return fields, nil
}

// decodeMutable reads EMHEADER-framed members by PID, skipping unknown
// PIDs via their declared length (§4.1 "Unknown PIDs are skipped using
// the length prefix").
func decodeMutable(r *Reader, d *typedesc.Descriptor, enc Encapsulation) (map[string]any, error) {
	byID := make(map[uint32]*typedesc.Member, len(d.Members))
	for i := range d.Members {
		byID[d.Members[i].ID] = &d.Members[i]
	}
	fields := make(map[string]any, len(d.Members))
	for {
		if err := r.align(4); err != nil {
			return nil, err
		}
		pid, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		if pid == pidSentinel {
			if _, err := r.ReadUint16(); err != nil {
				return nil, err
			}
			break
		}
		length, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		body, err := r.ReadRawBytes(int(length))
		if err != nil {
			return nil, err
		}
		m, known := byID[uint32(pid)]
		if !known {
			continue // unknown PID: preserved only at the ParameterList layer (internal/rtps), skipped here
		}
		inner := NewReader(body, CDR2_LE)
		v, err := decodeValue(inner, m.Type, CDR2_LE)
		if err != nil {
			return nil, err
		}
		fields[m.Name] = v
	}
	for _, m := range d.Members {
		if !m.Optional {
			if _, ok := fields[m.Name]; !ok {
				return nil, hddserr.New("cdr.decode", hddserr.Protocol, "type_mismatch: missing required member %q", m.Name)
			}
		}
	}
	return fields, nil
}

func decodeUnion(r *Reader, d *typedesc.Descriptor, enc Encapsulation) (Union, error) {
	disc, err := r.ReadInt32()
	if err != nil {
		return Union{}, err
	}
	member := selectUnionMember(d, disc)
	if member == nil {
		return Union{}, hddserr.New("cdr.decode", hddserr.Protocol, "type_mismatch: no union case for discriminator %d", disc)
	}
	v, err := decodeValue(r, member.Type, enc)
	if err != nil {
		return Union{}, err
	}
	return Union{Disc: disc, Value: v}, nil
}
