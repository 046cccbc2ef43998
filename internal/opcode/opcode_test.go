package opcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	flavors := []Flavor{Dense, RowSparse, Compressed}
	for _, f := range flavors {
		for d := 0; d <= 16; d++ {
			cmd := Encode(f, d)
			gotF, gotD, err := Decode(cmd)
			require.NoError(t, err)
			assert.Equal(t, f, gotF, "flavor mismatch for cmd %d", cmd)
			assert.Equal(t, d, gotD, "dtype mismatch for cmd %d", cmd)
		}
	}
}

func TestDecodeNegativeIsRejected(t *testing.T) {
	_, _, err := Decode(-1)
	assert.Error(t, err)
}

func TestEncodeMatchesKnownValues(t *testing.T) {
	// Dense(0) + dtype float32(0) -> cmd 0
	assert.Equal(t, 0, Encode(Dense, 0))
	// RowSparse(1) + dtype 0 -> ((1+0)*(1+0+1))/2+0 = 1
	assert.Equal(t, 1, Encode(RowSparse, 0))
	// Dense(0) + dtype 1 -> ((0+1)*(0+1+1))/2+1 = 2
	assert.Equal(t, 2, Encode(Dense, 1))
}
