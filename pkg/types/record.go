// Package types provides core data types for tmpldb: tokens, values and records.
package types

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Fields is the ordered field map of a record. Insertion order controls the
// order fields are rendered in.
type Fields = orderedmap.OrderedMap[string, Value]

// NewFields returns an empty ordered field map.
func NewFields() *Fields {
	return orderedmap.New[string, Value]()
}

// Record is the unit stored in both collections.
//
// A definition has Instance == "" and Schema set to its own name. An instance
// has Instance set and Schema naming the definition it was created from.
type Record struct {
	// Schema is the definition name (definitions) or the schema reference (instances)
	Schema string

	// Instance is the instance name; empty for definitions
	Instance string

	// Fields maps field name to value in insertion order
	Fields *Fields
}

// NewTemplate returns an empty definition record named name.
func NewTemplate(name string) *Record {
	return &Record{Schema: name, Fields: NewFields()}
}

// IsInstance reports whether the record is an instantiated copy.
func (r *Record) IsInstance() bool {
	return r.Instance != ""
}

// With appends or replaces a field, returning the receiver for chaining.
func (r *Record) With(name string, v Value) *Record {
	r.Set(name, v)
	return r
}

// Set replaces the named field in place, or appends it when absent.
func (r *Record) Set(name string, v Value) {
	if r.Fields == nil {
		r.Fields = NewFields()
	}
	r.Fields.Set(name, v)
}

// Get returns the named field.
func (r *Record) Get(name string) (Value, bool) {
	if r.Fields == nil {
		return Value{}, false
	}
	return r.Fields.Get(name)
}

// FieldNames returns the field names in order.
func (r *Record) FieldNames() []string {
	if r.Fields == nil {
		return nil
	}
	names := make([]string, 0, r.Fields.Len())
	for p := r.Fields.Oldest(); p != nil; p = p.Next() {
		names = append(names, p.Key)
	}
	return names
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r.Fields == nil {
		return 0
	}
	return r.Fields.Len()
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := &Record{Schema: r.Schema, Instance: r.Instance, Fields: NewFields()}
	if r.Fields != nil {
		for p := r.Fields.Oldest(); p != nil; p = p.Next() {
			cp.Fields.Set(p.Key, p.Value)
		}
	}
	return cp
}

// Project returns a copy of the record holding only the named fields, in the
// order named. Values are read from the receiver, which is not modified.
// Naming a field twice keeps its first position.
func (r *Record) Project(names []string) (*Record, error) {
	proj := &Record{Schema: r.Schema, Instance: r.Instance, Fields: NewFields()}
	for _, name := range names {
		v, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, name)
		}
		proj.Fields.Set(name, v)
	}
	return proj, nil
}

// Equal compares the whole record: identity slots and the ordered field set.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Schema != o.Schema || r.Instance != o.Instance || r.Len() != o.Len() {
		return false
	}
	if r.Len() == 0 {
		return true
	}
	a, b := r.Fields.Oldest(), o.Fields.Oldest()
	for ; a != nil && b != nil; a, b = a.Next(), b.Next() {
		if a.Key != b.Key || !a.Value.Equal(b.Value) {
			return false
		}
	}
	return true
}

// Fingerprint hashes the canonical encoding of the record with murmur3.
// Equal records always share a fingerprint.
func (r *Record) Fingerprint() [2]uint64 {
	h := murmur3.New128()
	var buf [8]byte
	writeString := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}

	writeString(r.Schema)
	writeString(r.Instance)
	if r.Fields != nil {
		for p := r.Fields.Oldest(); p != nil; p = p.Next() {
			writeString(p.Key)
			h.Write([]byte{byte(p.Value.Kind)})
			switch p.Value.Kind {
			case KindText:
				writeString(p.Value.Text)
			case KindInteger:
				binary.LittleEndian.PutUint64(buf[:], uint64(p.Value.Int))
				h.Write(buf[:])
			case KindFloat:
				f := p.Value.Float
				if f == 0 {
					f = 0 // fold -0 into +0, they compare equal
				}
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
				h.Write(buf[:])
			}
		}
	}

	h1, h2 := h.Sum128()
	return [2]uint64{h1, h2}
}

// MarshalJSON renders {"template": ..., "instance": ..., "data": {...}} with
// data fields in insertion order. Absent identity slots render as null.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"template":`)
	if err := writeOptional(&buf, r.Schema); err != nil {
		return nil, err
	}
	buf.WriteString(`,"instance":`)
	if err := writeOptional(&buf, r.Instance); err != nil {
		return nil, err
	}
	buf.WriteString(`,"data":{`)
	if r.Fields != nil {
		first := true
		for p := r.Fields.Oldest(); p != nil; p = p.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, err := json.Marshal(p.Key)
			if err != nil {
				return nil, err
			}
			val, err := p.Value.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", p.Key, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts what MarshalJSON produces, preserving field order.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Template *string `json:"template"`
		Instance *string `json:"instance"`
		Data     *Fields `json:"data"`
	}
	raw.Data = NewFields()
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record{Fields: raw.Data}
	if raw.Template != nil {
		r.Schema = *raw.Template
	}
	if raw.Instance != nil {
		r.Instance = *raw.Instance
	}
	if r.Fields == nil {
		r.Fields = NewFields()
	}
	return nil
}

func writeOptional(buf *bytes.Buffer, s string) error {
	if s == "" {
		buf.WriteString("null")
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
