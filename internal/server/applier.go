package server

import (
	"github.com/pkg/errors"

	"github.com/dreamware/paramserver/internal/tensor"
)

// applyUpdate implements the Update Applier (spec §4.7). The push
// handlers call it once they have folded the new contribution into
// merge or scratch and appended a pendingDescriptor. The compressed
// async push and the empty row-sparse async push do not go through it.
func (s *Server) applyUpdate(id int64, k *keyRecord) error {
	syncMode := s.syncMode.Load()

	ready := !syncMode // async: apply on every push
	if syncMode {
		ready = k.pendingNumMerge() >= s.numWorkers
	}
	if !ready {
		k.merge.WaitToRead()
		return nil
	}

	multi := s.multiPrecision.Load() && k.master != nil
	target := k.targetTensor(multi)
	source := k.sourceTensor(syncMode)

	if s.updater != nil {
		s.exec.Exec(func() { s.updater(id, source, target) })
	} else if syncMode {
		if k.rowSparse {
			if err := tensor.MergeRowsInto(target, source); err != nil {
				panic(errors.Wrap(err, "server: applying row-sparse merge"))
			}
		} else {
			tensor.CopyCast(target, source)
		}
	} else {
		panic(errNoUpdater)
	}

	altPath := s.leMethod || s.tsEngine
	if altPath {
		k.version++
	}

	if multi {
		tensor.CopyCast(k.serving, target)
	}
	k.serving.WaitToRead()

	if altPath {
		s.autoPullResponse(k, k.pending[len(k.pending)-1].Req)
	} else {
		for _, p := range k.pending {
			if p.Req.Pull {
				s.pullResponse(k, p.Req)
			} else {
				s.responder.Response(p.Req)
			}
		}
	}
	k.pending = k.pending[:0]
	return nil
}
