package record

import "strconv"

// Constant is a single typed field value: an integer, a real, or a string.
type Constant struct {
	kind   FieldType
	intVal int
	fltVal float64
	strVal string
}

// NewIntConstant creates a new Constant with an integer value.
func NewIntConstant(val int) Constant {
	return Constant{kind: IntField, intVal: val}
}

// NewRealConstant creates a new Constant with a floating point value.
func NewRealConstant(val float64) Constant {
	return Constant{kind: RealField, fltVal: val}
}

// NewStringConstant creates a new Constant with a string value.
func NewStringConstant(val string) Constant {
	return Constant{kind: StringField, strVal: val}
}

// Type returns the field type of the value.
func (c Constant) Type() FieldType {
	return c.kind
}

// String returns a string representation of the constant.
func (c Constant) String() string {
	switch c.kind {
	case IntField:
		return strconv.Itoa(c.intVal)
	case RealField:
		return strconv.FormatFloat(c.fltVal, 'g', -1, 64)
	default:
		return c.strVal
	}
}

// AsInt returns the integer value, truncating reals.
func (c Constant) AsInt() int {
	if c.kind == RealField {
		return int(c.fltVal)
	}
	return c.intVal
}

// AsReal returns the value as a float64. Strings yield 0.
func (c Constant) AsReal() float64 {
	if c.kind == IntField {
		return float64(c.intVal)
	}
	return c.fltVal
}

// AsString returns the string value of the constant.
func (c Constant) AsString() string {
	return c.strVal
}

func (c Constant) IsInt() bool     { return c.kind == IntField }
func (c Constant) IsReal() bool    { return c.kind == RealField }
func (c Constant) IsString() bool  { return c.kind == StringField }
func (c Constant) IsNumeric() bool { return c.kind.IsNumeric() }

// Equals checks if the constant is equal to another constant.
func (c Constant) Equals(other Constant) bool {
	return c.CompareTo(other) == 0
}

// CompareTo returns -1, 0, or 1 if this Constant is less than, equal to, or greater than the other.
// Integers and reals compare numerically; every number sorts before every string.
func (c Constant) CompareTo(other Constant) int {
	switch {
	case c.kind == IntField && other.kind == IntField:
		return cmpOrdered(c.intVal, other.intVal)
	case c.IsNumeric() && other.IsNumeric():
		return cmpOrdered(c.AsReal(), other.AsReal())
	case c.IsString() && other.IsString():
		return cmpOrdered(c.strVal, other.strVal)
	case c.IsNumeric():
		return -1
	default:
		return 1
	}
}

func cmpOrdered[T int | float64 | string](a, b T) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
