// Package integration exercises the parameter server across multiple
// flavors and keys in one running instance, the way
// distributed_storage_test.go drove PUT/GET/DELETE against a live
// coordinator+node cluster — except there's no separate process to
// spawn here, so the harness wraps server.Server directly and talks to
// it the way a worker's transport layer would.
package integration

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/paramserver/internal/opcode"
	"github.com/dreamware/paramserver/internal/server"
	"github.com/dreamware/paramserver/internal/tensor"
	"github.com/dreamware/paramserver/internal/transport"
	"github.com/dreamware/paramserver/internal/transport/fake"
)

// testSystem wraps one Server plus the fake.Van recording everything it
// sends, standing in for the PUT/GET/DELETE HTTP harness the coordinator
// integration test used against a live cluster.
type testSystem struct {
	t   *testing.T
	s   *server.Server
	van *fake.Van
}

func newTestSystem(t *testing.T, cfg server.Config) *testSystem {
	t.Helper()
	van := fake.NewVan(1, fake.NewModelReceiverOracle([]transport.NodeID{2, 3}))
	if cfg.Responder == nil {
		cfg.Responder = van
	}
	if cfg.Van == nil {
		cfg.Van = van
	}
	s := server.New(cfg)
	t.Cleanup(s.Close)
	return &testSystem{t: t, s: s, van: van}
}

func (ts *testSystem) push(key uint64, vals []float32, pull bool) {
	ts.t.Helper()
	err := ts.s.Dispatch(transport.Request{
		Meta: transport.RequestMeta{
			Opcode: opcode.Encode(opcode.Dense, int(tensor.Float32)),
			Push:   true,
			Pull:   pull,
			Key:    key,
		},
		Payload: transport.KVPairs{
			Keys: []uint64{key},
			Vals: f32Bytes(vals...),
			Lens: []int32{int32(len(vals) * 4)},
		},
	})
	require.NoError(ts.t, err)
}

func (ts *testSystem) pull(key uint64) []float32 {
	ts.t.Helper()
	err := ts.s.Dispatch(transport.Request{
		Meta:    transport.RequestMeta{Opcode: opcode.Encode(opcode.Dense, int(tensor.Float32)), Pull: true, Key: key},
		Payload: transport.KVPairs{Keys: []uint64{key}},
	})
	require.NoError(ts.t, err)
	pulls := ts.van.Pulls()
	require.NotEmpty(ts.t, pulls)
	return readF32s(pulls[len(pulls)-1].Data.Vals)
}

func f32Bytes(vals ...float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func readF32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// TestMultipleKeysAggregateIndependently drives two unrelated dense
// keys through one server the way two different clients in a cluster
// would, confirming per-key state never leaks across keys.
func TestMultipleKeysAggregateIndependently(t *testing.T) {
	ts := newTestSystem(t, server.Config{SyncMode: true, NumWorkers: 2, WorkerDtype: tensor.Float32})

	ts.push(1, []float32{0, 0}, false) // implicit init
	ts.push(2, []float32{100}, false)  // implicit init

	ts.push(1, []float32{1, 2}, false)
	ts.push(1, []float32{3, 4}, false)
	ts.push(2, []float32{5}, false)
	ts.push(2, []float32{7}, false)

	assert.Equal(t, []float32{4, 6}, ts.pull(1))
	assert.Equal(t, []float32{12}, ts.pull(2))
}

// TestAsyncPushThenSyncPullOnSameServer confirms an async-mode update
// applied by the host's registered updater is immediately visible to a
// pull, with no merge/pending bookkeeping in the way.
func TestAsyncPushThenSyncPullOnSameServer(t *testing.T) {
	ts := newTestSystem(t, server.Config{NumWorkers: 1, WorkerDtype: tensor.Float32})
	ts.s.SetUpdater(func(key int64, source, target *tensor.Tensor) {
		tensor.AddCast(target, source)
	})

	ts.push(3, []float32{1}, false) // implicit init
	ts.push(3, []float32{2}, false) // async apply: serving = 1 + 2

	assert.Equal(t, []float32{3}, ts.pull(3))
}

// TestCombinedPushPullRepliesWithPostRoundState exercises the
// push+pull-in-one-request path (NumMerge 1, both bits set) and
// checks the reply carries the state as of right after the round
// applies, not the pre-round state.
func TestCombinedPushPullRepliesWithPostRoundState(t *testing.T) {
	ts := newTestSystem(t, server.Config{SyncMode: true, NumWorkers: 2, WorkerDtype: tensor.Float32})
	ts.push(4, []float32{0}, false) // implicit init

	err := ts.s.Dispatch(transport.Request{
		Meta: transport.RequestMeta{
			Opcode:   opcode.Encode(opcode.Dense, int(tensor.Float32)),
			Push:     true,
			Pull:     true,
			Key:      4,
			NumMerge: 1,
		},
		Payload: transport.KVPairs{Keys: []uint64{4}, Vals: f32Bytes(1), Lens: []int32{4}},
	})
	require.NoError(t, err)
	assert.Empty(t, ts.van.Pulls(), "round not complete yet, no reply expected")

	err = ts.s.Dispatch(transport.Request{
		Meta: transport.RequestMeta{
			Opcode:   opcode.Encode(opcode.Dense, int(tensor.Float32)),
			Push:     true,
			Pull:     true,
			Key:      4,
			NumMerge: 1,
		},
		Payload: transport.KVPairs{Keys: []uint64{4}, Vals: f32Bytes(3), Lens: []int32{4}},
	})
	require.NoError(t, err)

	pulls := ts.van.Pulls()
	require.Len(t, pulls, 2, "both workers in the round get a pull-style reply")
	assert.Equal(t, []float32{4}, readF32s(pulls[0].Data.Vals))
	assert.Equal(t, []float32{4}, readF32s(pulls[1].Data.Vals))
}
