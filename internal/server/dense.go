package server

import (
	"github.com/pkg/errors"

	"github.com/dreamware/paramserver/internal/tensor"
	"github.com/dreamware/paramserver/internal/transport"
)

// handleDense implements the Dense Handler (spec §4.3).
func (s *Server) handleDense(req transport.Request, dtype int) error {
	id := int64(req.Meta.Key)
	srcDtype := tensor.Dtype(dtype)

	if req.Meta.Pull && !req.Meta.Push {
		k, ok := s.keyFor(id, nil)
		if !ok {
			panic(errors.Errorf("server: pull for uninitialized key %d", id))
		}
		s.pullResponse(k, req.Meta)
		return nil
	}
	return s.denseHandlePush(id, srcDtype, req.Payload, req.Meta)
}

// denseHandlePush implements §4.3's push path. When ENABLE_TSENGINE is
// set it acknowledges the push immediately, before touching any
// tensor state, matching the original's top-of-handler
// `server->Response(req_meta)` (kvstore_dist_server.h:902) — the
// update itself is still applied and reported on afterward via the
// auto-pull path, it's only the ack that moves earlier.
func (s *Server) denseHandlePush(id int64, srcDtype tensor.Dtype, payload transport.KVPairs, meta transport.RequestMeta) error {
	if s.tsEngine {
		s.responder.Response(meta)
	}

	k, existed := s.keyFor(id, func() *keyRecord { return &keyRecord{} })

	if !existed {
		servingDtype := s.workerDtype
		elems := int64(len(payload.Vals)) / int64(srcDtype.ElemSize())
		k.serving = tensor.NewDenseFromBytes(servingDtype, []int64{elems}, srcDtype, payload.Vals)
		k.version = 0
		if s.multiPrecision.Load() && servingDtype != tensor.Float32 {
			k.master = tensor.NewDense(tensor.Float32, k.serving.Shape()...)
			tensor.CopyCast(k.master, k.serving)
			k.master.WaitToRead()
		}
		k.serving.WaitToRead()
		switch {
		case s.tsEngine:
			s.autoPullResponse(k, meta)
		case meta.Pull:
			s.pullResponse(k, meta)
		default:
			s.responder.Response(meta)
		}
		return nil
	}

	multi := s.multiPrecision.Load() && k.master != nil
	mergeDtype := k.serving.Dtype()
	if multi {
		mergeDtype = tensor.Float32
	}

	grad := tensor.NewDenseFromBytes(mergeDtype, k.serving.Shape(), srcDtype, payload.Vals)

	if len(k.pending) == 0 {
		if s.syncMode.Load() {
			if k.merge == nil {
				k.merge = tensor.NewDense(mergeDtype, k.serving.Shape()...)
			}
			tensor.CopyCast(k.merge, grad)
		} else {
			if k.scratch == nil {
				k.scratch = tensor.NewDense(mergeDtype, k.serving.Shape()...)
			}
			tensor.CopyCast(k.scratch, grad)
		}
	} else {
		tensor.AddCast(k.merge, grad)
	}

	numMerge := meta.NumMerge
	if numMerge <= 0 {
		numMerge = 1
	}
	k.pending = append(k.pending, pendingDescriptor{Req: meta, NumMerge: numMerge})
	return s.applyUpdate(id, k)
}
