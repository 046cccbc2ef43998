// Package opcode implements the wire opcode encoding described in
// spec §6: a single integer packs (RequestFlavor, dtype) via the
// Cantor pairing function, so one wire command byte carries both the
// push/pull flavor and the element type of the payload.
package opcode

import (
	"math"

	"github.com/pkg/errors"
)

// Flavor is one of the three request flavors that share a single wire
// opcode. Dense, RowSparse, and Compressed each get their own handler
// in internal/server; no inheritance hierarchy, just a tagged enum and
// handler dispatch, per the teacher's polymorphism-over-flavor design.
type Flavor int

const (
	Dense Flavor = iota
	RowSparse
	Compressed
)

func (f Flavor) String() string {
	switch f {
	case Dense:
		return "dense"
	case RowSparse:
		return "row_sparse"
	case Compressed:
		return "compressed"
	default:
		return "unknown"
	}
}

// Encode packs (flavor, dtype) into a single wire opcode using the
// Cantor pairing function: cmd = ((m+d)*(m+d+1))/2 + d.
func Encode(flavor Flavor, dtype int) int {
	m := int(flavor)
	return ((m+dtype)*(m+dtype+1))/2 + dtype
}

// Decode inverts Encode, recovering (flavor, dtype) from cmd. It
// returns an error if cmd is negative or the decoded pair is not
// representable (negative x or y), which §7 treats as a protocol
// violation — a wire-format mismatch between worker and server, not a
// recoverable condition.
func Decode(cmd int) (Flavor, int, error) {
	if cmd < 0 {
		return 0, 0, errors.Errorf("opcode: invalid negative cmd %d", cmd)
	}
	w := int(math.Floor((math.Sqrt(8*float64(cmd)+1) - 1) / 2))
	t := (w*w + w) / 2
	y := cmd - t
	x := w - y
	if x < 0 || y < 0 {
		return 0, 0, errors.Errorf("opcode: invalid cmd %d decodes to (x=%d, y=%d)", cmd, x, y)
	}
	return Flavor(x), y, nil
}
