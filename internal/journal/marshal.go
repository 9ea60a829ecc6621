package journal

import (
	"encoding/json"
	"fmt"

	"github.com/pyx-industries/julee/internal/value"
)

// marshalObject converts a value.Object to canonical JSON TEXT for storage.
// Canonical serialization keeps recorded history byte-identical across
// processes, which the replay input-hash check depends on.
func marshalObject(obj value.Object) (string, error) {
	if obj == nil {
		obj = value.Object{}
	}
	data, err := value.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return string(data), nil
}

// unmarshalObject parses canonical JSON TEXT back to a value.Object.
// Integers decode via json.Number so values above 2^53 survive intact.
func unmarshalObject(data string) (value.Object, error) {
	if data == "" || data == "{}" {
		return value.Object{}, nil
	}
	var obj value.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	return obj, nil
}
