// Command paramserver runs the parameter-server core as a standalone
// process. The real wire transport is out of scope (SPEC_FULL.md's
// Transport section): this binary wires an in-memory loopback
// (internal/transport/fake) by default, so it starts, demonstrates one
// push/pull round-trip against itself, and shuts down cleanly — the
// shape a real deployment fills in with its own Van/Responder.
//
// Configuration (environment variables, all optional):
//
//	NODE_ID                 this node's rank, used for profiler filename
//	                        prefixing and as the LE-method self id (default 0)
//	SYNC_MODE               enable sync aggregation (default true)
//	MULTI_PRECISION         start with the float32-master retrofit enabled
//	ENABLE_LEMETHOD         switch to push-based model distribution
//	ENABLE_TSENGINE         respond-before-apply dense path
//	NUM_WORKERS             worker count used for local-aggregation merge counting
//	WORKER_DTYPE            float32|float64|float16|int32|int64|int8|uint8
//	GRADIENT_COMPRESSION_THRESHOLD
//	                        if set, configures a two-bit gradient codec at startup
//	PARAMSERVER_DEMO        if "0", skip the self-test push/pull round-trip
package main

import (
	"encoding/binary"
	"flag"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/dreamware/paramserver/internal/compress"
	"github.com/dreamware/paramserver/internal/config"
	"github.com/dreamware/paramserver/internal/opcode"
	"github.com/dreamware/paramserver/internal/profiler"
	"github.com/dreamware/paramserver/internal/server"
	"github.com/dreamware/paramserver/internal/tensor"
	"github.com/dreamware/paramserver/internal/transport"
	"github.com/dreamware/paramserver/internal/transport/fake"
)

// logFatal is a variable so tests can intercept a fatal exit instead of
// actually terminating the process.
var logFatal = klog.Fatalf

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	rank := config.Int("NODE_ID", 0)
	dtype := parseDtype(config.String("WORKER_DTYPE", "float32"))

	cfg := server.Config{
		SyncMode:       config.Bool("SYNC_MODE", true),
		MultiPrecision: config.Bool("MULTI_PRECISION", false),
		LEMethod:       config.EnableLEMethod(),
		TSEngine:       config.EnableTSEngine(),
		NumWorkers:     config.Int("NUM_WORKERS", 1),
		WorkerDtype:    dtype,
		Profiler:       profiler.NewKlogProfiler(rank),
	}

	if threshold := config.String("GRADIENT_COMPRESSION_THRESHOLD", ""); threshold != "" {
		t, err := strconv.ParseFloat(threshold, 32)
		if err != nil {
			logFatal("invalid GRADIENT_COMPRESSION_THRESHOLD %q: %v", threshold, err)
			return
		}
		cfg.Codec = compress.NewTwoBitCodec(float32(t))
	}

	van := fake.NewVan(transport.NodeID(rank), fake.NewModelReceiverOracle(nil))
	cfg.Responder = van
	cfg.Van = van

	s := server.New(cfg)
	klog.InfoS("paramserver started", "rank", rank, "syncMode", cfg.SyncMode,
		"leMethod", cfg.LEMethod, "workerDtype", dtype)

	if config.Bool("PARAMSERVER_DEMO", true) {
		runDemo(s, van)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	klog.Info("paramserver stopping")
	s.Close()
	klog.Info("paramserver stopped")
}

// runDemo drives one push followed by one pull through the server's own
// dispatcher, proving the default loopback wiring works end-to-end
// without requiring a real peer — the standalone-binary analogue of
// cmd/node/main.go's register() call against a real coordinator. It
// always pushes float32 wire bytes: the server casts them into whatever
// WorkerDtype was configured, the same cast path a real float16 worker
// would exercise.
func runDemo(s *server.Server, van *fake.Van) {
	const key = uint64(0)
	opc := opcode.Encode(opcode.Dense, int(tensor.Float32))

	push := transport.Request{
		Meta: transport.RequestMeta{
			Opcode: opc,
			Push:   true,
			Key:    key,
		},
		Payload: transport.KVPairs{
			Keys: []uint64{key},
			Vals: f32Bytes(1, 2, 3),
			Lens: []int32{3},
		},
	}
	if err := s.Dispatch(push); err != nil {
		klog.ErrorS(err, "demo push failed")
		return
	}

	pull := transport.Request{
		Meta: transport.RequestMeta{
			Opcode: opc,
			Pull:   true,
			Key:    key,
		},
		Payload: transport.KVPairs{Keys: []uint64{key}},
	}
	if err := s.Dispatch(pull); err != nil {
		klog.ErrorS(err, "demo pull failed")
		return
	}

	pulls := van.Pulls()
	if len(pulls) == 0 {
		klog.Error("demo pull produced no response")
		return
	}
	klog.InfoS("demo round-trip complete", "key", key, "bytes", len(pulls[len(pulls)-1].Data.Vals))
}

func parseDtype(s string) tensor.Dtype {
	switch s {
	case "float32":
		return tensor.Float32
	case "float64":
		return tensor.Float64
	case "float16":
		return tensor.Float16
	case "int32":
		return tensor.Int32
	case "int64":
		return tensor.Int64
	case "int8":
		return tensor.Int8
	case "uint8":
		return tensor.UInt8
	default:
		klog.Warningf("unknown WORKER_DTYPE %q, defaulting to float32", s)
		return tensor.Float32
	}
}

func f32Bytes(vals ...float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
