package record

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/file"
)

// FieldType is the semantic type of an attribute.
type FieldType int

const (
	IntField FieldType = iota
	RealField
	StringField
)

func (t FieldType) String() string {
	switch t {
	case IntField:
		return "INT"
	case RealField:
		return "REAL"
	case StringField:
		return "STRING"
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// IsNumeric reports whether values of this type can be summed.
func (t FieldType) IsNumeric() bool {
	return t == IntField || t == RealField
}

// FieldInfo holds the type and declared length of an attribute.
// For strings the length is the maximum payload in bytes.
type FieldInfo struct {
	fieldLength int
	fieldType   FieldType
}

// Type returns the semantic type.
func (fi FieldInfo) Type() FieldType { return fi.fieldType }

// Length returns the declared length.
func (fi FieldInfo) Length() int { return fi.fieldLength }

// Width returns the number of bytes the attribute occupies inside a tuple.
func (fi FieldInfo) Width() int {
	switch fi.fieldType {
	case IntField:
		return file.IntSize
	case RealField:
		return file.FloatSize
	default:
		return file.MaxLength(fi.fieldLength)
	}
}

// Schema is an ordered list of attributes. Attribute names are qualified
// ("Table.col") so that the schemas of two different tables can be joined.
// A schema is built once and then treated as read-only.
type Schema struct {
	fields    []string
	fieldInfo map[string]FieldInfo
}

// NewSchema creates a new schema
func NewSchema() *Schema {
	return &Schema{
		fields:    make([]string, 0),
		fieldInfo: make(map[string]FieldInfo),
	}
}

func (s *Schema) AddField(name string, fieldType FieldType, length int) {
	if _, exists := s.fieldInfo[name]; !exists {
		s.fields = append(s.fields, name)
	}
	s.fieldInfo[name] = FieldInfo{
		fieldLength: length,
		fieldType:   fieldType,
	}
}

func (s *Schema) AddIntField(name string) {
	s.AddField(name, IntField, file.IntSize)
}

func (s *Schema) AddRealField(name string) {
	s.AddField(name, RealField, file.FloatSize)
}

func (s *Schema) AddStringField(name string, length int) {
	s.AddField(name, StringField, length)
}

func (s *Schema) Copy(other *Schema, fieldName string) {
	if info, exists := other.fieldInfo[fieldName]; exists {
		s.AddField(fieldName, info.fieldType, info.fieldLength)
	}
}

func (s *Schema) CopyAll(other *Schema) {
	for _, field := range other.fields {
		info := other.fieldInfo[field]
		s.AddField(field, info.fieldType, info.fieldLength)
	}
}

// Fields returns a copy of the field names slice
func (s *Schema) Fields() []string {
	fields := make([]string, len(s.fields))
	copy(fields, s.fields)
	return fields
}

// NumFields returns the number of attributes.
func (s *Schema) NumFields() int {
	return len(s.fields)
}

// Field returns the name of the i-th attribute.
func (s *Schema) Field(i int) string {
	return s.fields[i]
}

// GetFieldInfo returns the field information for a given field name
func (s *Schema) GetFieldInfo(fieldName string) (FieldInfo, bool) {
	info, exists := s.fieldInfo[fieldName]
	return info, exists
}

// Type returns the type of a field
func (s *Schema) Type(fieldName string) FieldType {
	return s.fieldInfo[fieldName].fieldType
}

// Length returns the length of a field
func (s *Schema) Length(fieldName string) int {
	if info, exists := s.fieldInfo[fieldName]; exists {
		return info.fieldLength
	}
	return 0
}

// HasField checks if the schema contains the specified field.
func (s *Schema) HasField(fieldName string) bool {
	_, exists := s.fieldInfo[fieldName]
	return exists
}

// IndexOf returns the position of the attribute, or -1.
func (s *Schema) IndexOf(fieldName string) int {
	for i, f := range s.fields {
		if f == fieldName {
			return i
		}
	}
	return -1
}

// IndicesOf resolves a list of attribute names to positions.
func (s *Schema) IndicesOf(fieldNames []string) ([]int, error) {
	idx := make([]int, len(fieldNames))
	for i, name := range fieldNames {
		idx[i] = s.IndexOf(name)
		if idx[i] < 0 {
			return nil, errors.Newf("unknown attribute %q", name)
		}
	}
	return idx, nil
}

// TupleSize returns the byte size of one tuple of this schema.
func (s *Schema) TupleSize() int {
	size := 0
	for _, f := range s.fields {
		size += s.fieldInfo[f].Width()
	}
	return size
}

// SubSchema returns a schema holding only the named attributes, in the given order.
func (s *Schema) SubSchema(fieldNames []string) (*Schema, error) {
	sub := NewSchema()
	for _, name := range fieldNames {
		if !s.HasField(name) {
			return nil, errors.Newf("unknown attribute %q", name)
		}
		sub.Copy(s, name)
	}
	return sub, nil
}

// Join returns the concatenation of s and other.
func (s *Schema) Join(other *Schema) (*Schema, error) {
	joined := NewSchema()
	joined.CopyAll(s)
	for _, f := range other.fields {
		if joined.HasField(f) {
			return nil, errors.Newf("attribute %q appears on both sides of a join", f)
		}
	}
	joined.CopyAll(other)
	return joined, nil
}

// Equal reports whether both schemas list the same attributes in the same order.
func (s *Schema) Equal(other *Schema) bool {
	if len(s.fields) != len(other.fields) {
		return false
	}
	for i, f := range s.fields {
		if other.fields[i] != f || other.fieldInfo[f] != s.fieldInfo[f] {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f + " " + s.fieldInfo[f].fieldType.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
