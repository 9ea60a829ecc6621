package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the constrained types that may cross an
// activity boundary. Only Null, String, Int, Bool, Array, and Object implement
// it. There is no float type: floats have no canonical serialization and would
// break content-addressed replay.
type Value interface {
	isValue()
}

// Null represents an explicit JSON null.
type Null struct{}

func (Null) isValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string value.
type String string

func (String) isValue() {}

// Int is an integer value. Always int64, never float64.
type Int int64

func (Int) isValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) isValue() {}

// Array is an ordered sequence of values.
type Array []Value

func (Array) isValue() {}

// Object is a map of string keys to values.
// Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) isValue() {}

// Strings converts a string slice into an Array.
func Strings(ss []string) Array {
	arr := make(Array, len(ss))
	for i, s := range ss {
		arr[i] = String(s)
	}
	return arr
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which produces a different order
// for strings outside the ASCII range.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required by
// RFC 8785. utf16.Encode handles surrogate pairs correctly.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := len(a16)
	if len(b16) < minLen {
		minLen = len(b16)
	}

	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*obj = make(Object, len(raw))
	for k, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("object key %q: %w", k, err)
		}
		(*obj)[k] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*arr = make(Array, len(raw))
	for i, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("array index %d: %w", i, err)
		}
		(*arr)[i] = val
	}
	return nil
}

// unmarshalValue decodes a JSON value into the matching Value type.
// Non-integral numbers are rejected; integers decode via json.Number to
// avoid float64 precision loss above 2^53.
func unmarshalValue(data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case 'n':
		return Null{}, nil

	case '[':
		var arr Array
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, err
		}
		return arr, nil

	case '{':
		var obj Object
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		return obj, nil

	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer numbers are not allowed: %s", string(data))
		}
		return Int(i), nil
	}
}

// MarshalJSON implements json.Marshaler for Object with RFC 8785 key ordering.
// This is display serialization, not canonical: strings may carry HTML escapes.
// Use MarshalCanonical for anything that feeds a hash.
func (obj Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := obj.SortedKeys()
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalValue marshals a single Value to JSON bytes.
// Display serialization only; use MarshalCanonical for hashing.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			elemBytes, err := MarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(elemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case Object:
		return val.MarshalJSON()
	case nil:
		return nil, fmt.Errorf("nil Value")
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}
