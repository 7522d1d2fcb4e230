package models

// ValueKind tags the scalar held by a FlatRecord field
type ValueKind int

const (
	KindMissing ValueKind = iota
	KindNumber
	KindString
)

// Value is a tagged scalar: a number, a raw string, or missing.
// Strings are coerced to numbers (or to missing) during alignment.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
}

// Number wraps a numeric value
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// Text wraps a raw string value
func Text(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Missing is the absent-value marker
var Missing = Value{Kind: KindMissing}

// FlatRecord is an insertion-ordered mapping from field name to a tagged
// scalar. The field set is report-dependent and unbounded: every permission,
// opcode, and API call in a report becomes its own field.
type FlatRecord struct {
	keys []string
	vals map[string]Value
}

// NewFlatRecord creates an empty record
func NewFlatRecord() *FlatRecord {
	return &FlatRecord{vals: make(map[string]Value)}
}

// Set stores a value under name. A repeated name keeps its original
// insertion position; the value is overwritten (last write wins).
func (r *FlatRecord) Set(name string, v Value) {
	if _, exists := r.vals[name]; !exists {
		r.keys = append(r.keys, name)
	}
	r.vals[name] = v
}

// Get returns the value stored under name
func (r *FlatRecord) Get(name string) (Value, bool) {
	v, ok := r.vals[name]
	return v, ok
}

// Delete removes a field. Absent names are ignored.
func (r *FlatRecord) Delete(name string) {
	if _, ok := r.vals[name]; !ok {
		return
	}
	delete(r.vals, name)
	for i, k := range r.keys {
		if k == name {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the field names in insertion order
func (r *FlatRecord) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields
func (r *FlatRecord) Len() int {
	return len(r.keys)
}

// Clone returns an independent copy of the record
func (r *FlatRecord) Clone() *FlatRecord {
	c := &FlatRecord{
		keys: make([]string, len(r.keys)),
		vals: make(map[string]Value, len(r.vals)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.vals {
		c.vals[k] = v
	}
	return c
}
