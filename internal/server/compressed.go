package server

import (
	"github.com/pkg/errors"

	"github.com/dreamware/paramserver/internal/tensor"
	"github.com/dreamware/paramserver/internal/transport"
)

// handleCompressed implements the Compressed Handler (spec §4.5). Only
// float32 is supported; keys[0] is the original element count and
// keys[1] is the parameter id.
func (s *Server) handleCompressed(req transport.Request, dtype int) error {
	if tensor.Dtype(dtype) != tensor.Float32 {
		panic(errors.Errorf("server: compressed flavor only supports float32, got dtype %d", dtype))
	}
	if len(req.Payload.Keys) < 2 {
		panic(errors.New("server: compressed request missing element-count/parameter-id keys"))
	}
	if s.codec == nil {
		panic(errors.New("server: compressed push received with no codec configured"))
	}

	originalElems := int(req.Payload.Keys[0])
	id := int64(req.Payload.Keys[1])

	if req.Meta.Pull && !req.Meta.Push {
		k, ok := s.keyFor(id, nil)
		if !ok {
			panic(errors.Errorf("server: pull for uninitialized compressed key %d", id))
		}
		s.pullResponse(k, req.Meta)
		return nil
	}
	return s.compressedHandlePush(id, originalElems, req.Payload, req.Meta)
}

// compressedHandlePush implements §4.5's push path with the same
// ENABLE_TSENGINE early-ack treatment as denseHandlePush.
func (s *Server) compressedHandlePush(id int64, originalElems int, payload transport.KVPairs, meta transport.RequestMeta) error {
	if s.tsEngine {
		s.responder.Response(meta)
	}

	k, existed := s.keyFor(id, func() *keyRecord { return &keyRecord{} })

	if !existed {
		// Gradient compression is float32 end to end (handleCompressed
		// above already rejects any other wire dtype) — serving never
		// takes on s.workerDtype here the way the dense/row-sparse
		// handlers do, so multi-precision never applies to this flavor.
		k.serving = tensor.NewDense(tensor.Float32, int64(originalElems))
		if err := s.codec.Dequantize(payload.Vals, k.serving.Bytes(), originalElems); err != nil {
			panic(errors.Wrap(err, "server: dequantizing compressed init push"))
		}
		if !s.tsEngine {
			s.responder.Response(meta)
		}
		k.serving.WaitToRead()
		if s.tsEngine {
			s.autoPullResponse(k, meta)
		}
		return nil
	}

	multi := s.multiPrecision.Load() && k.master != nil
	mergeDtype := k.serving.Dtype()
	if multi {
		mergeDtype = tensor.Float32
	}

	if s.syncMode.Load() {
		if k.merge == nil {
			k.merge = tensor.NewDense(mergeDtype, k.serving.Shape()...)
		}
		if len(k.pending) == 0 {
			if err := s.codec.Dequantize(payload.Vals, k.merge.Bytes(), originalElems); err != nil {
				panic(errors.Wrap(err, "server: dequantizing compressed sync push"))
			}
		} else {
			if k.decomp == nil {
				k.decomp = tensor.NewDense(mergeDtype, k.serving.Shape()...)
			}
			if err := s.codec.Dequantize(payload.Vals, k.decomp.Bytes(), originalElems); err != nil {
				panic(errors.Wrap(err, "server: dequantizing compressed sync push"))
			}
			tensor.AddCast(k.merge, k.decomp)
		}
		numMerge := meta.NumMerge
		if numMerge <= 0 {
			numMerge = 1
		}
		k.pending = append(k.pending, pendingDescriptor{Req: meta, NumMerge: numMerge})
		return s.applyUpdate(id, k)
	}

	// Async: dequantize into decomp, dispatch the optimizer onto the
	// executor to update serving from decomp directly (no merge/pending
	// bookkeeping — every push applies immediately).
	if k.decomp == nil {
		k.decomp = tensor.NewDense(mergeDtype, k.serving.Shape()...)
	}
	if err := s.codec.Dequantize(payload.Vals, k.decomp.Bytes(), originalElems); err != nil {
		panic(errors.Wrap(err, "server: dequantizing compressed async push"))
	}
	if s.updater == nil {
		panic(errNoUpdater)
	}
	target := k.targetTensor(multi)
	s.exec.Exec(func() { s.updater(id, k.decomp, target) })
	if multi {
		tensor.CopyCast(k.serving, target)
	}
	k.serving.WaitToRead()
	switch {
	case s.tsEngine:
		s.autoPullResponse(k, meta)
	default:
		s.responder.Response(meta)
	}
	return nil
}
