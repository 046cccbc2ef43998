package server

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/dreamware/paramserver/internal/opcode"
	"github.com/dreamware/paramserver/internal/transport"
)

// Dispatch implements the Request Dispatcher (spec §4.2). It decodes
// the wire opcode into (flavor, dtype) and routes to the matching
// flavor handler, or — when LE-method is enabled — to the local
// aggregation path. It never blocks on a host callback itself; any
// work that needs the executor is routed there by the handler it
// calls into.
//
// A panic escaping a handler (protocol violations and mode-misuse
// assertions, per §7's fail-stop policy) is logged with its stack
// trace before being re-raised — §7 calls for the process to still go
// down, just not silently.
func (s *Server) Dispatch(req transport.Request) error {
	defer func() {
		if r := recover(); r != nil {
			klog.ErrorS(errors.Errorf("%v", r), "server: panic in Dispatch", "meta", req.Meta)
			panic(r)
		}
	}()

	flavor, dtype, decodeErr := opcode.Decode(req.Meta.Opcode)
	if decodeErr != nil {
		panic(errors.Wrap(decodeErr, "server: protocol violation decoding opcode"))
	}
	return s.dispatchDecoded(req, flavor, dtype)
}

func (s *Server) dispatchDecoded(req transport.Request, flavor opcode.Flavor, dtype int) error {
	if s.leMethod {
		if flavor != opcode.Dense {
			panic(errors.Errorf("server: LE-method requires Dense flavor, got %s", flavor))
		}
		switch req.Meta.Cmd {
		case transport.LocalAggregation:
			return s.handleLocalAggregation(req)
		case transport.Init:
			return s.handleLEMethodInit(req)
		default:
			panic(errors.Errorf("server: LE-method does not accept control-cmd %s", req.Meta.Cmd))
		}
	}

	switch flavor {
	case opcode.Dense:
		return s.handleDense(req, dtype)
	case opcode.RowSparse:
		return s.handleRowSparse(req, dtype)
	case opcode.Compressed:
		return s.handleCompressed(req, dtype)
	default:
		panic(errors.Errorf("server: unknown request flavor %s", flavor))
	}
}
