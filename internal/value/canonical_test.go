package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"max int64", Int(9223372036854775807), "9223372036854775807"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"array of ints", Array{Int(1), Int(2), Int(3)}, "[1,2,3]"},
		{"simple object", Object{"a": Int(1)}, `{"a":1}`},
		{"plain string", "raw", `"raw"`},
		{"plain int", 7, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := Object{
		"zebra": Int(1),
		"alpha": Int(2),
		"beta":  Int(3),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalNestedObjects(t *testing.T) {
	obj := Object{
		"z": Object{
			"b": Int(1),
			"a": Int(2),
		},
		"a": Int(3),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	obj := Object{"q": String("a<b>&c")}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"q":"a<b>&c"}`, string(result))
}

func TestMarshalCanonicalRejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(3.14)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")

	_, err = MarshalCanonical(map[string]any{"x": 1.5})
	require.Error(t, err)
}

func TestMarshalCanonicalRejectsNull(t *testing.T) {
	_, err := MarshalCanonical(nil)
	require.Error(t, err)

	_, err = MarshalCanonical(Null{})
	require.Error(t, err)
}

func TestMarshalCanonicalU2028Literal(t *testing.T) {
	// RFC 8785: U+2028 stays a literal character, never \u2028.
	result, err := MarshalCanonical(String("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))
}

func TestMarshalCanonicalDeterministic(t *testing.T) {
	obj := Object{
		"name":  String("capture"),
		"seq":   Int(12),
		"flags": Array{Bool(true), Bool(false)},
	}

	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestToValueConversions(t *testing.T) {
	v, err := ToValue(map[string]any{"k": []any{"a", 1, true}})
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	assert.Equal(t, Array{String("a"), Int(1), Bool(true)}, obj["k"])

	_, err = ToValue(2.5)
	require.Error(t, err)
}
