// Package typedesc implements the schema-tree side of the data model
// (§3 "Type descriptor"): primitive types, bounded/unbounded strings,
// arrays, sequences, maps, enums, unions, nested structs, bitsets,
// optional members, and extensibility markers, plus the stable type
// identifier derived from the tree.
package typedesc

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
)

// Kind enumerates the primitive and composite shapes a Member can take.
type Kind int

const (
	KindBool Kind = iota
	KindByte
	KindInt16
	KindInt32
	KindInt64
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString   // bounded/unbounded UTF-8
	KindWString  // bounded/unbounded UTF-16
	KindArray    // fixed-size array of Elem
	KindSequence // length-prefixed sequence of Elem
	KindMap      // length-prefixed (key,value) pairs
	KindEnum
	KindUnion
	KindStruct
	KindBitset
	KindBitmask
)

// Extensibility controls how the CDR decoder tolerates member-set drift
// between writer and reader type versions (§4.1 "Type compatibility").
type Extensibility int

const (
	Final Extensibility = iota
	Appendable
	Mutable
)

// Member is one field of a struct/union/bitset.
type Member struct {
	Name       string
	ID         uint32 // PID for Mutable structs; ignored otherwise
	Type       *Descriptor
	Optional   bool
	IsKey      bool
	UnionLabel []int32 // discriminator values selecting this case, nil for struct members
}

// Descriptor is a node in the type schema tree (§3 "Type descriptor").
type Descriptor struct {
	Name          string
	Kind          Kind
	Extensibility Extensibility

	// Bound is the maximum element/character count for bounded strings,
	// sequences, and maps; 0 means unbounded. For KindArray it is the
	// fixed length.
	Bound int

	// Elem is the element type for Array/Sequence/Map values; for Map,
	// KeyType additionally holds the key type.
	Elem    *Descriptor
	KeyType *Descriptor

	// Members holds struct/union/bitset fields, in declaration order.
	Members []Member

	// DiscriminatorType is the union's discriminator type, nil otherwise.
	DiscriminatorType *Descriptor

	// EnumValues names enum/bitmask constants by ordinal.
	EnumValues []string
}

// TypeID is the stable 14-byte MD5-truncated identifier of a descriptor
// (§3). It round-trips through SEDP so peers can recognize identical
// types without exchanging the full tree.
type TypeID [14]byte

func (t TypeID) String() string { return fmt.Sprintf("%x", [14]byte(t)) }

// canonicalMember and canonicalDescriptor, built by canonicalize,
// render a Descriptor into a stable textual form that
// depends only on structurally meaningful fields, so that two trees
// describing the same wire layout hash identically regardless of Go
// struct field order.
type canonicalMember struct {
	Name     string `json:"n"`
	ID       uint32 `json:"i,omitempty"`
	Type     string `json:"t"`
	Optional bool   `json:"o,omitempty"`
	IsKey    bool   `json:"k,omitempty"`
}

type canonicalDescriptor struct {
	Name    string             `json:"name"`
	Kind    Kind               `json:"kind"`
	Ext     Extensibility      `json:"ext"`
	Bound   int                `json:"bound,omitempty"`
	Elem    *canonicalDescriptor `json:"elem,omitempty"`
	Key     *canonicalDescriptor `json:"key,omitempty"`
	Members []canonicalMember  `json:"members,omitempty"`
}

func canonicalize(d *Descriptor) *canonicalDescriptor {
	if d == nil {
		return nil
	}
	c := &canonicalDescriptor{Name: d.Name, Kind: d.Kind, Ext: d.Extensibility, Bound: d.Bound}
	c.Elem = canonicalize(d.Elem)
	c.Key = canonicalize(d.KeyType)
	for _, m := range d.Members {
		t, _ := json.Marshal(canonicalize(m.Type))
		c.Members = append(c.Members, canonicalMember{
			Name: m.Name, ID: m.ID, Optional: m.Optional, IsKey: m.IsKey,
			Type: string(t),
		})
	}
	return c
}

// ComputeTypeID derives the 14-byte truncated-MD5 type identifier from a
// descriptor's canonical form (§3). MD5 is used only as a fixed-size
// content fingerprint here, never for anything security-sensitive, which
// is exactly the spec's own "MD5-truncated" wording.
func ComputeTypeID(d *Descriptor) TypeID {
	c := canonicalize(d)
	buf, _ := json.Marshal(c)
	sum := md5.Sum(buf)
	var id TypeID
	copy(id[:], sum[:14])
	return id
}

// Registry holds named type descriptors registered dynamically at
// runtime (§6 "register_descriptor"), so readers/writers can bind to a
// type by name without a compile-time schema.
type Registry struct {
	byName map[string]*Descriptor
}

// NewRegistry constructs an empty type registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Descriptor)}
}

// Register stores d under typeName, overwriting any previous entry.
func (r *Registry) Register(typeName string, d *Descriptor) {
	r.byName[typeName] = d
}

// Lookup returns the descriptor registered under typeName, if any.
func (r *Registry) Lookup(typeName string) (*Descriptor, bool) {
	d, ok := r.byName[typeName]
	return d, ok
}
