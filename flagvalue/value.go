// Package flagvalue provides an abstraction over the JSON-compatible value types used throughout
// the flag evaluation data model: flag variations, context attributes, and clause operands all
// pass through this type so that comparisons and serialization only need to be implemented once.
package flagvalue

import (
	"encoding/json"
	"sort"
)

// Type identifies which JSON type a Value holds.
type Type int

const (
	// NullType is the zero value of Value.
	NullType Type = iota
	BoolType
	NumberType
	StringType
	ArrayType
	ObjectType
)

func (t Type) String() string {
	switch t {
	case BoolType:
		return "bool"
	case NumberType:
		return "number"
	case StringType:
		return "string"
	case ArrayType:
		return "array"
	case ObjectType:
		return "object"
	default:
		return "null"
	}
}

// Value is an immutable JSON-compatible value. The zero Value is null.
type Value struct {
	valueType Type
	boolVal   bool
	numVal    float64
	strVal    string
	arrVal    []Value
	objVal    map[string]Value
}

// Null returns a null Value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{valueType: BoolType, boolVal: b} }

// Int wraps an integer.
func Int(n int) Value { return Value{valueType: NumberType, numVal: float64(n)} }

// Float64 wraps a float64.
func Float64(n float64) Value { return Value{valueType: NumberType, numVal: n} }

// String wraps a string.
func String(s string) Value { return Value{valueType: StringType, strVal: s} }

// Array constructs an array Value from the given elements, copying the slice.
func Array(elements ...Value) Value {
	cp := make([]Value, len(elements))
	copy(cp, elements)
	return Value{valueType: ArrayType, arrVal: cp}
}

// Object constructs an object Value from the given map, copying it.
func Object(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{valueType: ObjectType, objVal: cp}
}

// Type returns the JSON type of the value.
func (v Value) Type() Type { return v.valueType }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.valueType == NullType }

// IsNumber reports whether the value is a number.
func (v Value) IsNumber() bool { return v.valueType == NumberType }

// BoolValue returns the boolean value, or false if not a bool.
func (v Value) BoolValue() bool { return v.boolVal }

// Float64Value returns the numeric value, or 0 if not a number.
func (v Value) Float64Value() float64 { return v.numVal }

// IntValue returns the numeric value truncated to int.
func (v Value) IntValue() int { return int(v.numVal) }

// StringValue returns the string value, or "" if not a string.
func (v Value) StringValue() string { return v.strVal }

// Count returns the number of elements in an array, or 0 otherwise.
func (v Value) Count() int {
	if v.valueType == ArrayType {
		return len(v.arrVal)
	}
	return 0
}

// GetByIndex returns the element at i in an array value.
func (v Value) GetByIndex(i int) Value {
	if v.valueType == ArrayType && i >= 0 && i < len(v.arrVal) {
		return v.arrVal[i]
	}
	return Null()
}

// AsSlice returns the array contents as a slice, or nil.
func (v Value) AsSlice() []Value {
	if v.valueType != ArrayType {
		return nil
	}
	return v.arrVal
}

// GetByKey returns the object property named key, or Null if absent/not an object.
func (v Value) GetByKey(key string) Value {
	if v.valueType == ObjectType {
		if val, ok := v.objVal[key]; ok {
			return val
		}
	}
	return Null()
}

// Keys returns the sorted property names of an object value.
func (v Value) Keys() []string {
	if v.valueType != ObjectType {
		return nil
	}
	keys := make([]string, 0, len(v.objVal))
	for k := range v.objVal {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal does a deep, type-sensitive comparison.
func (v Value) Equal(o Value) bool {
	if v.valueType != o.valueType {
		return false
	}
	switch v.valueType {
	case NullType:
		return true
	case BoolType:
		return v.boolVal == o.boolVal
	case NumberType:
		return v.numVal == o.numVal
	case StringType:
		return v.strVal == o.strVal
	case ArrayType:
		if len(v.arrVal) != len(o.arrVal) {
			return false
		}
		for i := range v.arrVal {
			if !v.arrVal[i].Equal(o.arrVal[i]) {
				return false
			}
		}
		return true
	case ObjectType:
		if len(v.objVal) != len(o.objVal) {
			return false
		}
		for k, vv := range v.objVal {
			ov, ok := o.objVal[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.valueType {
	case NullType:
		return []byte("null"), nil
	case BoolType:
		return json.Marshal(v.boolVal)
	case NumberType:
		return json.Marshal(v.numVal)
	case StringType:
		return json.Marshal(v.strVal)
	case ArrayType:
		return json.Marshal(v.arrVal)
	case ObjectType:
		return json.Marshal(v.objVal)
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromInterface(raw)
	return nil
}

// FromInterface converts a generic decoded interface{} (as produced by encoding/json) into a Value.
func FromInterface(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Float64(t)
	case string:
		return String(t)
	case []interface{}:
		elems := make([]Value, len(t))
		for i, e := range t {
			elems[i] = FromInterface(e)
		}
		return Array(elems...)
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromInterface(e)
		}
		return Object(m)
	default:
		return Null()
	}
}

// CanonicalString returns the canonical decimal representation of a number value, used for
// bucketing: integers render without a decimal point, matching the teacher SDK's bucketing rules.
func (v Value) CanonicalString() (string, bool) {
	switch v.valueType {
	case StringType:
		return v.strVal, true
	case NumberType:
		if v.numVal == float64(int64(v.numVal)) {
			return itoa(int64(v.numVal)), true
		}
		return "", false
	default:
		return "", false
	}
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
