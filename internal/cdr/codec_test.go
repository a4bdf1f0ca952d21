package cdr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/cdr"
	"github.com/hdds-io/hdds/internal/typedesc"
)

func pointStruct(ext typedesc.Extensibility) *typedesc.Descriptor {
	return &typedesc.Descriptor{
		Name:          "Point",
		Kind:          typedesc.KindStruct,
		Extensibility: ext,
		Members: []typedesc.Member{
			{Name: "x", ID: 1, Type: &typedesc.Descriptor{Kind: typedesc.KindInt32}, IsKey: true},
			{Name: "y", ID: 2, Type: &typedesc.Descriptor{Kind: typedesc.KindInt32}},
			{Name: "label", ID: 3, Type: &typedesc.Descriptor{Kind: typedesc.KindString}, Optional: true},
		},
	}
}

func TestRoundTripFinal(t *testing.T) {
	d := pointStruct(typedesc.Final)
	v := map[string]any{"x": int32(43), "y": int32(-7), "label": "hello"}

	for _, enc := range []cdr.Encapsulation{cdr.CDR_LE, cdr.CDR_BE, cdr.CDR2_LE, cdr.CDR2_BE} {
		buf, err := cdr.EncodeValue(d, v, enc)
		require.NoError(t, err)

		got, err := cdr.DecodeValue(d, buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestRoundTripAppendableSuffixTrimming(t *testing.T) {
	writerType := pointStruct(typedesc.Appendable)
	writerType.Members = append(writerType.Members, typedesc.Member{
		Name: "extra", ID: 4, Type: &typedesc.Descriptor{Kind: typedesc.KindInt32}, Optional: true,
	})
	v := map[string]any{"x": int32(1), "y": int32(2), "extra": int32(99)}
	buf, err := cdr.EncodeValue(writerType, v, cdr.D_CDR2_LE)
	require.NoError(t, err)

	readerType := pointStruct(typedesc.Appendable) // older reader, doesn't know "extra"
	got, err := cdr.DecodeValue(readerType, buf)
	require.NoError(t, err)
	require.Equal(t, int32(1), got.(map[string]any)["x"])
	require.Equal(t, int32(2), got.(map[string]any)["y"])
	_, hasExtra := got.(map[string]any)["extra"]
	require.False(t, hasExtra)
}

func TestRoundTripMutableSkipsUnknownPID(t *testing.T) {
	writerType := pointStruct(typedesc.Mutable)
	writerType.Members = append(writerType.Members, typedesc.Member{
		Name: "future", ID: 77, Type: &typedesc.Descriptor{Kind: typedesc.KindInt32},
	})
	v := map[string]any{"x": int32(5), "y": int32(6), "future": int32(123)}
	buf, err := cdr.EncodeValue(writerType, v, cdr.PL_CDR2_LE)
	require.NoError(t, err)

	readerType := pointStruct(typedesc.Mutable)
	got, err := cdr.DecodeValue(readerType, buf)
	require.NoError(t, err)
	gotMap := got.(map[string]any)
	require.Equal(t, int32(5), gotMap["x"])
	require.Equal(t, int32(6), gotMap["y"])
	_, hasFuture := gotMap["future"]
	require.False(t, hasFuture)
}

func TestSequenceAndMap(t *testing.T) {
	d := &typedesc.Descriptor{
		Kind: typedesc.KindStruct,
		Members: []typedesc.Member{
			{Name: "items", Type: &typedesc.Descriptor{Kind: typedesc.KindSequence, Elem: &typedesc.Descriptor{Kind: typedesc.KindInt32}}},
			{Name: "kv", Type: &typedesc.Descriptor{
				Kind:    typedesc.KindMap,
				KeyType: &typedesc.Descriptor{Kind: typedesc.KindString},
				Elem:    &typedesc.Descriptor{Kind: typedesc.KindInt32},
			}},
		},
	}
	v := map[string]any{
		"items": []any{int32(1), int32(2), int32(3)},
		"kv":    []cdr.MapEntry{{Key: "a", Value: int32(1)}, {Key: "b", Value: int32(2)}},
	}
	buf, err := cdr.EncodeValue(d, v, cdr.CDR2_LE)
	require.NoError(t, err)
	got, err := cdr.DecodeValue(d, buf)
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestUnknownEncapsulationRejected(t *testing.T) {
	_, err := cdr.DecodeValue(pointStruct(typedesc.Final), []byte{0xff, 0xff, 0, 0})
	require.Error(t, err)
}
