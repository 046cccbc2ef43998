package server

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dreamware/paramserver/internal/compress"
	"github.com/dreamware/paramserver/internal/opcode"
	"github.com/dreamware/paramserver/internal/tensor"
	"github.com/dreamware/paramserver/internal/transport"
)

func TestDispatchRejectsBadOpcode(t *testing.T) {
	s, _ := newTestServer(t, Config{SyncMode: true})

	req := transport.Request{Meta: transport.RequestMeta{Opcode: -1, Push: true, Key: 1}}
	assert.Panics(t, func() {
		_ = s.Dispatch(req)
	})
}

func TestDispatchRejectsUnknownFlavor(t *testing.T) {
	s, _ := newTestServer(t, Config{SyncMode: true})

	// Cantor-pair (flavor=3, dtype=0) decodes to a flavor past Compressed.
	req := transport.Request{Meta: transport.RequestMeta{Opcode: 6, Push: true, Key: 1}}
	assert.Panics(t, func() {
		_ = s.Dispatch(req)
	})
}

func TestDispatchLEMethodRejectsNonDenseFlavor(t *testing.T) {
	s, _ := newTestServer(t, Config{LEMethod: true})

	req := transport.Request{
		Meta: transport.RequestMeta{
			Opcode: 1, // (RowSparse, float32)
			Cmd:    transport.Init,
			Push:   true,
			Key:    1,
		},
	}
	assert.Panics(t, func() {
		_ = s.Dispatch(req)
	})
}

func TestDispatchPanicIsLoggedAndRePanics(t *testing.T) {
	s, _ := newTestServer(t, Config{SyncMode: true, Codec: compress.NewTwoBitCodec(1.0)})

	// An originalElems count that overflows int (wraps negative) drives
	// tensor.NewDense into a negative-length make, panicking instead of
	// erroring cleanly — this is the kind of protocol violation §7
	// treats as fail-stop.
	badReq := transport.Request{
		Meta: transport.RequestMeta{
			Opcode: opcode.Encode(opcode.Compressed, int(tensor.Float32)),
			Push:   true,
			Key:    1,
		},
		Payload: transport.KVPairs{Keys: []uint64{math.MaxUint64, 1}, Vals: []byte{0}},
	}
	assert.Panics(t, func() {
		_ = s.Dispatch(badReq)
	})
}
