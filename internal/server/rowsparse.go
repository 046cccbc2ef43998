package server

import (
	"github.com/pkg/errors"

	"github.com/dreamware/paramserver/internal/tensor"
	"github.com/dreamware/paramserver/internal/transport"
)

// handleRowSparse implements the Row-Sparse Handler (spec §4.4).
// keys[0] is the master key; keys[1..] encode row ids as
// master_key+row_id. Row byte lengths are taken directly from the
// payload rather than from a separately-signaled element count, which
// keeps this handler agnostic to dtype width.
func (s *Server) handleRowSparse(req transport.Request, dtype int) error {
	if len(req.Payload.Keys) == 0 {
		panic(errors.New("server: row-sparse request with empty keys"))
	}
	masterKey := int64(req.Payload.Keys[0])
	srcDtype := tensor.Dtype(dtype)

	if req.Meta.Pull && !req.Meta.Push {
		return s.rowSparsePull(masterKey, req)
	}
	return s.rowSparsePush(masterKey, srcDtype, req)
}

func (s *Server) rowSparsePull(masterKey int64, req transport.Request) error {
	k, ok := s.keyFor(masterKey, nil)
	if !ok {
		panic(errors.Errorf("server: pull for uninitialized row-sparse key %d", masterKey))
	}
	k.serving.WaitToRead()

	numRows := len(req.Payload.Keys) - 1
	lens := make([]int32, numRows+1)
	out := make([]byte, 0)
	for i := 0; i < numRows; i++ {
		rowID := int64(req.Payload.Keys[i+1] - req.Payload.Keys[0])
		row, ok := k.serving.Row(rowID)
		if !ok {
			panic(errors.Errorf("server: row %d not present in key %d", rowID, masterKey))
		}
		out = append(out, row...)
		lens[i+1] = int32(len(row))
	}
	s.responder.PullResponse(req.Meta, transport.KVPairs{
		Keys: req.Payload.Keys,
		Vals: out,
		Lens: lens,
	})
	return nil
}

// rowSparsePush implements §4.4's push path. As in denseHandlePush, an
// ENABLE_TSENGINE ack fires immediately, before any row processing.
func (s *Server) rowSparsePush(masterKey int64, srcDtype tensor.Dtype, req transport.Request) error {
	if s.tsEngine {
		s.responder.Response(req.Meta)
	}

	numRows := len(req.Payload.Keys) - 1
	k, existed := s.keyFor(masterKey, func() *keyRecord { return &keyRecord{rowSparse: true} })

	if !existed {
		if numRows <= 0 {
			panic(errors.New("server: row-sparse init requires at least one row"))
		}
		if len(req.Payload.Lens) < 2 {
			panic(errors.New("server: row-sparse init missing per-row byte length"))
		}
		unitLenBytes := int(req.Payload.Lens[1])
		k.unitLen = int64(unitLenBytes) / int64(srcDtype.ElemSize())
		k.serving = tensor.NewRowSparseDense(s.workerDtype, int64(numRows), k.unitLen)

		s.eng.Submit(k.serving, func() {
			for i := 0; i < numRows; i++ {
				rowID := int64(req.Payload.Keys[i+1] - req.Payload.Keys[0])
				start := i * unitLenBytes
				end := start + unitLenBytes
				k.serving.SetRow(rowID, srcDtype, req.Payload.Vals[start:end])
			}
		})
		k.serving.WaitToRead()
		if s.multiPrecision.Load() && s.workerDtype != tensor.Float32 {
			k.master = tensor.NewRowSparseDense(tensor.Float32, int64(numRows), k.unitLen)
			tensor.CopyCast(k.master, k.serving)
			k.master.WaitToRead()
		}
		if s.tsEngine {
			s.autoPullResponse(k, req.Meta)
		} else {
			s.responder.Response(req.Meta)
		}
		return nil
	}

	multi := s.multiPrecision.Load() && k.master != nil
	mergeDtype := k.serving.Dtype()
	if multi {
		mergeDtype = tensor.Float32
	}
	numMerge := req.Meta.NumMerge
	if numMerge <= 0 {
		numMerge = 1
	}

	if numRows == 0 {
		if !s.syncMode.Load() {
			if !s.tsEngine {
				s.responder.Response(req.Meta)
			}
			return nil
		}
		if len(k.pending) == 0 {
			k.merge = tensor.NewRowSparseSparse(mergeDtype, k.unitLen)
		}
		k.pending = append(k.pending, pendingDescriptor{Req: req.Meta, NumMerge: numMerge})
		return s.applyUpdate(masterKey, k)
	}

	unitLenBytes := len(req.Payload.Vals) / numRows
	incoming := tensor.NewRowSparseSparse(mergeDtype, k.unitLen)
	for i := 0; i < numRows; i++ {
		rowID := int64(req.Payload.Keys[i+1] - req.Payload.Keys[0])
		start := i * unitLenBytes
		end := start + unitLenBytes
		incoming.SetRow(rowID, srcDtype, req.Payload.Vals[start:end])
	}

	if len(k.pending) == 0 {
		if s.syncMode.Load() {
			k.merge = incoming
		} else {
			k.scratch = incoming
		}
	} else {
		if err := tensor.AccumulateRows(k.merge, incoming); err != nil {
			panic(errors.Wrap(err, "server: accumulating row-sparse gradient"))
		}
	}

	k.pending = append(k.pending, pendingDescriptor{Req: req.Meta, NumMerge: numMerge})
	return s.applyUpdate(masterKey, k)
}
