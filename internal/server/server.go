// Package server implements the parameter-server core: the request
// dispatcher, the three request-flavor handlers, the update applier,
// the LE-method local-aggregation and distribution-loop paths, the
// command handler, and the multi-precision retrofit (spec §4.2-§4.11).
//
// It encapsulates all mutable server state inside one Server value
// with well-defined construction and teardown, per spec §9's "Global
// mutable state" design note — no process-wide singletons except the
// transport handle, which callers inject.
package server

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/dreamware/paramserver/internal/compress"
	"github.com/dreamware/paramserver/internal/executor"
	"github.com/dreamware/paramserver/internal/profiler"
	"github.com/dreamware/paramserver/internal/tensor"
	"github.com/dreamware/paramserver/internal/transport"
	"github.com/dreamware/paramserver/internal/workerpool"
)

// Updater applies a host-supplied update rule: target := f(source,
// target). The server dispatches calls to it onto the Main Executor
// (spec §4.7 step 3), so implementations may assume exclusive,
// serialized access to any runtime thread-local state.
type Updater func(key int64, source, target *tensor.Tensor)

// Config bundles the construction-time options that would otherwise be
// scattered across SetMultiPrecision/SyncMode/ENABLE_LEMETHOD calls,
// matching internal/config's typed env accessors.
type Config struct {
	SyncMode       bool
	MultiPrecision bool
	LEMethod       bool
	TSEngine       bool
	NumWorkers     int
	WorkerDtype    tensor.Dtype
	Codec          compress.Codec
	Profiler       profiler.Profiler
	Responder      transport.Responder
	Van            transport.Van
}

// Server is the parameter server's core. Per spec §5's shared-resource
// policy, the keys map is protected only for insertion/lookup — once a
// *keyRecord is retrieved, the transport's single-writer-per-key
// guarantee means no further locking of its fields is required.
type Server struct {
	mu   sync.Mutex
	keys map[int64]*keyRecord

	syncMode       atomicBool
	multiPrecision atomicBool
	leMethod       bool
	tsEngine       bool
	numWorkers     int
	workerDtype    tensor.Dtype

	updater  Updater
	codec    compress.Codec
	profiler profiler.Profiler

	exec *executor.Executor
	pool *workerpool.Pool
	eng  *tensor.Engine

	responder transport.Responder
	van       transport.Van

	iteration int64 // process-wide monotonic distribution counter, spec §3
}

// atomicBool is a tiny helper so SyncMode/SetMultiPrecision can be
// flipped concurrently with request handling without adding a second
// mutex (spec §4.10 requires these to be settable from the control
// channel while pushes are in flight on the data channel).
type atomicBool struct{ v atomic.Bool }

func (a *atomicBool) Load() bool   { return a.v.Load() }
func (a *atomicBool) Store(b bool) { a.v.Store(b) }

// New constructs a Server. The returned Server owns a Main Executor and
// a worker pool (sized 1 if cfg.LEMethod, else 0) and both must be
// stopped via Close.
func New(cfg Config) *Server {
	poolSize := 0
	if cfg.LEMethod {
		poolSize = 1
	}
	s := &Server{
		keys:        make(map[int64]*keyRecord),
		leMethod:    cfg.LEMethod,
		tsEngine:    cfg.TSEngine,
		numWorkers:  cfg.NumWorkers,
		workerDtype: cfg.WorkerDtype,
		updater:     nil,
		codec:       cfg.Codec,
		profiler:    cfg.Profiler,
		exec:        executor.New(),
		pool:        workerpool.New(poolSize),
		eng:         &tensor.Engine{},
		responder:   cfg.Responder,
		van:         cfg.Van,
	}
	s.syncMode.Store(cfg.SyncMode)
	s.multiPrecision.Store(cfg.MultiPrecision)
	return s
}

// Iteration returns the current value of the process-wide model
// distribution counter (spec §3 "Iteration counter").
func (s *Server) Iteration() int { return int(atomic.LoadInt64(&s.iteration)) }

// Version returns the current version counter for id, or 0 if id has
// no record yet (spec §6 "Versioning").
func (s *Server) Version(id int64) int {
	k, ok := s.keyFor(id, nil)
	if !ok {
		return 0
	}
	return k.version
}

// SetUpdater registers the host's update rule. Must be called before
// any push that would trigger application, i.e. at startup.
func (s *Server) SetUpdater(u Updater) { s.updater = u }

// Close stops the executor and worker pool, draining already-queued
// work first.
func (s *Server) Close() {
	s.pool.Stop()
	s.exec.Stop()
}

// keyFor returns the record for id, creating it via create if absent.
// create is only invoked while holding s.mu, so INIT races between
// concurrent pushes to a brand-new key never allocate two records —
// this is the one place the single-writer-per-key guarantee doesn't
// apply, since "does this key exist yet" is necessarily a cross-key
// question.
func (s *Server) keyFor(id int64, create func() *keyRecord) (*keyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if ok {
		return k, true
	}
	if create == nil {
		return nil, false
	}
	k = create()
	s.keys[id] = k
	return k, false
}

func (s *Server) allKeys() map[int64]*keyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*keyRecord, len(s.keys))
	for id, k := range s.keys {
		out[id] = k
	}
	return out
}

func (s *Server) logVerbose(msg string, kv ...interface{}) {
	klog.V(2).InfoS(msg, kv...)
}

var errNoUpdater = errors.New("server: async mode push with no registered updater")
