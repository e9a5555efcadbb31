package record

import "strings"

// Tuple is an ordered list of field values matching a schema.
// Tuples are never modified after they are produced; every combining
// operation returns a new slice.
type Tuple []Constant

// NewTuple creates a tuple holding vals.
func NewTuple(vals ...Constant) Tuple {
	t := make(Tuple, len(vals))
	copy(t, vals)
	return t
}

// Size returns the number of fields.
func (t Tuple) Size() int {
	return len(t)
}

// DataAt returns the i-th value.
func (t Tuple) DataAt(i int) Constant {
	return t[i]
}

// Equals compares every field.
func (t Tuple) Equals(other Tuple) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if !t[i].Equals(other[i]) {
			return false
		}
	}
	return true
}

// JoinWith returns the concatenation of t and right.
func (t Tuple) JoinWith(right Tuple) Tuple {
	out := make(Tuple, 0, len(t)+len(right))
	out = append(out, t...)
	return append(out, right...)
}

// AppendValue returns a copy of t with v appended.
func (t Tuple) AppendValue(v Constant) Tuple {
	out := make(Tuple, 0, len(t)+1)
	out = append(out, t...)
	return append(out, v)
}

// Project returns a new tuple holding the fields at idx.
func (t Tuple) Project(idx []int) Tuple {
	out := make(Tuple, len(idx))
	for i, j := range idx {
		out[i] = t[j]
	}
	return out
}

func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// CompareTuples orders a and b by the fields at keys, in key order.
func CompareTuples(a, b Tuple, keys []int) int {
	for _, k := range keys {
		if c := a[k].CompareTo(b[k]); c != 0 {
			return c
		}
	}
	return 0
}

// CompareKeys orders a by leftKeys against b by rightKeys. Both key lists have the same length.
func CompareKeys(a Tuple, leftKeys []int, b Tuple, rightKeys []int) int {
	for i := range leftKeys {
		if c := a[leftKeys[i]].CompareTo(b[rightKeys[i]]); c != 0 {
			return c
		}
	}
	return 0
}

// AllKeys returns the key list 0..n-1, ordering tuples by every field.
func AllKeys(n int) []int {
	keys := make([]int, n)
	for i := range keys {
		keys[i] = i
	}
	return keys
}
