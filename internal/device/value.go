package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueType is the type tag of a Value.
type ValueType uint8

// ValueType constants. The zero value is an absent value.
const (
	TypeNone ValueType = iota
	TypeString
	TypeNumber
	TypeBool
)

// String implements fmt.Stringer.
func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "boolean"
	default:
		return "none"
	}
}

// Value is an attribute or argument value: a string enum, a number or a boolean.
type Value struct {
	typ ValueType
	s   string
	n   float64
	b   bool
}

// String constructs a string Value.
func String(s string) Value { return Value{typ: TypeString, s: s} }

// Number constructs a numeric Value.
func Number(n float64) Value { return Value{typ: TypeNumber, n: n} }

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{typ: TypeBool, b: b} }

// Type returns the type tag.
func (v Value) Type() ValueType { return v.typ }

// IsZero reports whether the value is absent.
func (v Value) IsZero() bool { return v.typ == TypeNone }

// Str returns the string payload and whether the value is a string.
func (v Value) Str() (string, bool) { return v.s, v.typ == TypeString }

// Num returns the numeric payload and whether the value is a number.
func (v Value) Num() (float64, bool) { return v.n, v.typ == TypeNumber }

// Boolean returns the boolean payload and whether the value is a boolean.
func (v Value) Boolean() (bool, bool) { return v.b, v.typ == TypeBool }

// Interface returns the payload as a plain Go value for encoding purposes.
func (v Value) Interface() any {
	switch v.typ {
	case TypeString:
		return v.s
	case TypeNumber:
		return v.n
	case TypeBool:
		return v.b
	default:
		return nil
	}
}

// Equal compares two values. Numbers match when they differ by at most tolerance.
func (v Value) Equal(o Value, tolerance float64) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeString:
		return v.s == o.s
	case TypeNumber:
		return math.Abs(v.n-o.n) <= tolerance
	case TypeBool:
		return v.b == o.b
	default:
		return true
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.typ {
	case TypeString:
		return v.s
	case TypeNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case TypeBool:
		return strconv.FormatBool(v.b)
	default:
		return "<none>"
	}
}

// MarshalJSON encodes the value as its plain JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a JSON string, number, boolean or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = String(x)
	case float64:
		*v = Number(x)
	case bool:
		*v = Bool(x)
	default:
		return fmt.Errorf("device: unsupported value %s", data)
	}
	return nil
}
