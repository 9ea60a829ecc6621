package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashStable(t *testing.T) {
	obj := Object{"name": String("asset.save"), "seq": Int(4)}

	first, err := Hash(DomainStepInput, obj)
	require.NoError(t, err)
	second, err := Hash(DomainStepInput, obj)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // hex SHA-256
}

func TestHashDomainSeparation(t *testing.T) {
	obj := Object{"id": String("x")}

	a, err := Hash(DomainStepInput, obj)
	require.NoError(t, err)
	b, err := Hash(DomainEntity, obj)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHashSensitiveToContent(t *testing.T) {
	a, err := Hash(DomainStepInput, Object{"n": Int(1)})
	require.NoError(t, err)
	b, err := Hash(DomainStepInput, Object{"n": Int(2)})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestInputHashKeyOrderIndependent(t *testing.T) {
	// Maps iterate randomly; canonical serialization must erase that.
	a, err := InputHash(Object{"a": Int(1), "b": Int(2), "c": Int(3)})
	require.NoError(t, err)
	b, err := InputHash(Object{"c": Int(3), "b": Int(2), "a": Int(1)})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestMustHashPanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() {
		MustHash(DomainStepInput, Object{"bad": Null{}})
	})
}
