// Package canon implements the JCS-subset canonicalization described in
// spec §4.1: deterministic serialization of record trees into the exact
// byte sequence that DigestEngine hashes and Signer signs over.
package canon

import "github.com/datatrails/vaultledger/vaulterr"

// Value is any node in a record tree. The concrete types below are the
// only permitted leaves and containers; there is deliberately no float
// type — producers must pre-quantize (spec §9).
type Value interface {
	isValue()
}

type Null struct{}

func (Null) isValue() {}

type Bool bool

func (Bool) isValue() {}

type Int int64

func (Int) isValue() {}

type Str string

func (Str) isValue() {}

// Seq is an ordered sequence; producer order is preserved verbatim.
type Seq []Value

func (Seq) isValue() {}

// Obj is an ordered mapping that enforces at-most-one occurrence of each
// key at construction time, matching the Record invariant in spec §3.
// Canonicalize sorts entries by key for output; Obj itself retains
// insertion order for callers that want it (e.g. diagnostics).
type Obj struct {
	keys   []string
	values map[string]Value
}

func NewObj() *Obj {
	return &Obj{values: make(map[string]Value)}
}

func (*Obj) isValue() {}

// Set inserts key/val. It fails ErrDuplicateKey if key is already present.
func (o *Obj) Set(key string, val Value) error {
	if _, exists := o.values[key]; exists {
		return vaulterr.ErrDuplicateKey
	}
	o.keys = append(o.keys, key)
	o.values[key] = val
	return nil
}

// Get returns the value for key and whether it was present.
func (o *Obj) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Len returns the number of entries.
func (o *Obj) Len() int {
	return len(o.keys)
}

// Keys returns the keys in insertion order.
func (o *Obj) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}
