package value

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing.
// This is the ONLY serialization that may feed content-addressed identity.
//
// Differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No floats (returns error)
//  5. No null (returns error)
func MarshalCanonical(v any) ([]byte, error) {
	return marshalCanonical(v)
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case Null:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case String:
		return marshalCanonicalString(string(val))
	case Int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Array:
		return marshalCanonicalArray(val)
	case Object:
		return marshalCanonicalObject(val)
	case string:
		return marshalCanonicalString(val)
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ve, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = ve
		}
		return marshalCanonicalArray(arr)
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ve, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = ve
		}
		return marshalCanonicalObject(obj)
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// ToValue converts a plain Go value to a Value.
// Floats and nil are rejected.
func ToValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case int64:
		return Int(val), nil
	case int:
		return Int(val), nil
	case bool:
		return Bool(val), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden")
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ve, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ve
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ve, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = ve
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// marshalCanonicalString produces a canonical JSON string with NFC
// normalization. Per RFC 8785 only control characters, backslash, and quote
// are escaped; < > & and U+2028/U+2029 stay literal.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline, remove it
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	// Go's encoder escapes U+2028/U+2029 for JavaScript compatibility;
	// RFC 8785 requires them literal. \\u202x (escaped backslash followed by
	// the text "u202x") must be left alone.
	result = unescapeU2028U2029(result)

	return result, nil
}

// unescapeU2028U2029 converts \u2028 and \u2029 escape sequences back to
// literal characters, preserving sequences preceded by an odd run of
// backslashes (those encode a literal backslash plus text).
func unescapeU2028U2029(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	var result []byte
	i := 0
	for i < len(data) {
		if i+6 <= len(data) && data[i] == '\\' && data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			// Count the backslashes immediately before this position in the
			// output built so far: an even count means this backslash starts
			// a real \u202x escape.
			actualBackslashes := 0
			if result == nil {
				for j := i - 1; j >= 0 && data[j] == '\\'; j-- {
					actualBackslashes++
				}
			} else {
				for j := len(result) - 1; j >= 0 && result[j] == '\\'; j-- {
					actualBackslashes++
				}
			}

			if actualBackslashes%2 == 0 {
				if result == nil {
					result = make([]byte, 0, len(data))
					result = append(result, data[:i]...)
				}
				if data[i+5] == '8' {
					result = append(result, "\u2028"...)
				} else {
					result = append(result, "\u2029"...)
				}
				i += 6
				continue
			}
		}

		if result != nil {
			result = append(result, data[i])
		}
		i++
	}

	if result == nil {
		return data
	}
	return result
}

func marshalCanonicalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := marshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := obj.SortedKeys()

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
