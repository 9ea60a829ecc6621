package value

import (
	"encoding/json"
	"fmt"
)

// Marshal converts a plain struct (a use-case Request or Response) into an
// Object via its JSON form. Fields carrying non-integer numbers are rejected,
// the same constraint unmarshalValue enforces. Fields that marshal to null
// (nil slices, nil pointers) are dropped: an absent optional, not a value.
func Marshal(v any) (Object, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value: marshal %T: %w", v, err)
	}
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("value: convert %T: %w", v, err)
	}
	return dropNulls(obj), nil
}

// dropNulls removes Null-valued keys recursively. Nulls inside arrays are
// positional and cannot be dropped; they stay and fail canonical marshal.
func dropNulls(obj Object) Object {
	for k, v := range obj {
		switch val := v.(type) {
		case Null:
			delete(obj, k)
		case Object:
			obj[k] = dropNulls(val)
		}
	}
	return obj
}

// Unmarshal decodes an Object into a plain struct via its JSON form.
func Unmarshal(obj Object, out any) error {
	data, err := obj.MarshalJSON()
	if err != nil {
		return fmt.Errorf("value: encode object: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("value: decode into %T: %w", out, err)
	}
	return nil
}
