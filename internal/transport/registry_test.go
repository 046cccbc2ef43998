package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignAndOwnerOf(t *testing.T) {
	r := NewKeyRangeRegistry(1)
	require.NoError(t, r.Assign(1, 0, 100))
	require.NoError(t, r.Assign(2, 100, 200))

	owner, ok := r.OwnerOf(50)
	require.True(t, ok)
	assert.Equal(t, 1, owner)

	owner, ok = r.OwnerOf(150)
	require.True(t, ok)
	assert.Equal(t, 2, owner)

	_, ok = r.OwnerOf(500)
	assert.False(t, ok)
}

func TestAssignRejectsOverlap(t *testing.T) {
	r := NewKeyRangeRegistry(1)
	require.NoError(t, r.Assign(1, 0, 100))
	err := r.Assign(2, 50, 150)
	assert.Error(t, err)
}

func TestToLocalSubtractsRangeStart(t *testing.T) {
	r := NewKeyRangeRegistry(1)
	require.NoError(t, r.Assign(1, 1000, 2000))

	local, err := r.ToLocal(1007)
	require.NoError(t, err)
	assert.EqualValues(t, 7, local)
}

func TestToLocalRejectsKeyOwnedByAnotherServer(t *testing.T) {
	r := NewKeyRangeRegistry(1)
	require.NoError(t, r.Assign(1, 0, 100))
	require.NoError(t, r.Assign(2, 100, 200))

	_, err := r.ToLocal(150)
	assert.Error(t, err)
}
