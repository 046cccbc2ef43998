package server

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/dreamware/paramserver/internal/opcode"
	"github.com/dreamware/paramserver/internal/tensor"
	"github.com/dreamware/paramserver/internal/transport"
)

// handleLEMethodInit runs the dense push path to create the serving
// tensor for a freshly-seen key, then schedules an LE-method
// distribution of that tensor on the worker pool (spec §4.2's
// LE-method INIT branch).
func (s *Server) handleLEMethodInit(req transport.Request) error {
	_, dtype, err := opcode.Decode(req.Meta.Opcode)
	if err != nil {
		panic(errors.Wrap(err, "server: protocol violation decoding opcode"))
	}

	id := int64(req.Meta.Key)
	if err := s.denseHandlePush(id, tensor.Dtype(dtype), req.Payload, req.Meta); err != nil {
		return err
	}

	k, ok := s.keyFor(id, nil)
	if !ok {
		return errors.Errorf("server: LE-method init lost key %d", id)
	}
	s.scheduleDistribution(id, k, req.Meta)
	return nil
}

// handleLocalAggregation implements the LE-Method Local Aggregation
// Path (spec §4.6). Only sync mode is permitted on this path.
func (s *Server) handleLocalAggregation(req transport.Request) error {
	if !s.syncMode.Load() {
		panic(errors.New("server: LOCAL_AGGREGATION requires sync mode"))
	}
	id := int64(req.Meta.Key)
	k, ok := s.keyFor(id, nil)
	if !ok {
		panic(errors.Errorf("server: LOCAL_AGGREGATION for uninitialized key %d", id))
	}

	_, dtype, err := opcode.Decode(req.Meta.Opcode)
	if err != nil {
		panic(errors.Wrap(err, "server: protocol violation decoding opcode"))
	}
	srcDtype := tensor.Dtype(dtype)
	contribution := tensor.NewDenseFromBytes(k.serving.Dtype(), k.serving.Shape(), srcDtype, req.Payload.Vals)

	if k.numAggregationSoFar == 0 {
		tensor.CopyCast(k.serving, contribution)
	} else {
		tensor.AddCast(k.serving, contribution)
	}
	k.serving.WaitToRead()

	k.numAggregationSoFar += req.Meta.NumAggregation
	if k.numAggregationSoFar < s.numWorkers {
		return nil
	}

	s.van.NoticeWorkersOneIterationFinish(req.Meta.Key, int(s.iteration))
	k.numAggregationSoFar = 0
	s.scheduleDistribution(id, k, req.Meta)
	return nil
}

// scheduleDistribution snapshots serving and hands the distribution
// loop (spec §4.9) to the worker pool.
func (s *Server) scheduleDistribution(id int64, k *keyRecord, triggerReq transport.RequestMeta) {
	k.serving.WaitToRead()
	snapshot := append([]byte(nil), k.serving.Bytes()...)
	wireKey := uint64(id)
	s.pool.Submit(func() {
		s.runDistributionLoop(wireKey, snapshot, triggerReq)
	})
}

// runDistributionLoop implements spec §4.9 verbatim, including the
// negative-elapsed-time bandwidth proxy the oracle interprets — the
// subtraction order (t0 - t1, not t1 - t0) is deliberate and must not
// be "corrected".
func (s *Server) runDistributionLoop(key uint64, payload []byte, triggerReq transport.RequestMeta) {
	iteration := int(atomic.AddInt64(&s.iteration, 1))

	lastBandwidth := int64(0)
	lastReceiver := transport.Unknown

	for {
		receiver := s.van.GetModelReceiver(lastBandwidth, lastReceiver, iteration)
		if receiver == transport.Quit {
			return
		}

		msg := transport.Message{
			Cmd:       transport.ModelDistribution,
			Key:       key,
			Version:   iteration,
			Timestamp: triggerReq.Timestamp,
			Receiver:  receiver,
			Data: transport.KVPairs{
				Keys: []uint64{key},
				Vals: payload,
				Lens: []int32{int32(len(payload))},
			},
		}

		t0 := time.Now()
		if err := s.van.Send(msg); err != nil {
			s.logVerbose("model distribution send failed", "key", key, "receiver", receiver, "err", err)
			return
		}
		if err := s.van.WaitForModelDistributionReply(); err != nil {
			s.logVerbose("model distribution reply failed", "key", key, "receiver", receiver, "err", err)
			return
		}
		t1 := time.Now()

		lastBandwidth = t0.Sub(t1).Microseconds()
		lastReceiver = receiver
	}
}
