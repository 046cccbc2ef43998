package fake

import (
	"sync"

	"github.com/dreamware/paramserver/internal/transport"
)

// Van is an in-process, single-server implementation of
// transport.Van and transport.Responder, generalizing the teacher's
// internal/cluster.PostJSON/GetJSON HTTP helpers into a loopback bus
// with no network involved — suitable for unit tests and for
// cmd/paramserver's standalone mode, where "peers" are simulated
// receivers rather than real nodes.
type Van struct {
	mu sync.Mutex

	acks          []transport.RequestMeta
	pulls         []pullRecord
	sent          []transport.Message
	finishNotices []finishNotice
	oracle        *ModelReceiverOracle
	replyErr      error
	replyDone     chan struct{}
	selfID        transport.NodeID
}

type pullRecord struct {
	Req  transport.RequestMeta
	Data transport.KVPairs
}

type finishNotice struct {
	Key       uint64
	Iteration int
}

// NewVan creates a Van whose LE-method distribution loop selects
// receivers from oracle. selfID is returned by MyNodeID, standing in
// for ps::MyRank() in the original.
func NewVan(selfID transport.NodeID, oracle *ModelReceiverOracle) *Van {
	return &Van{selfID: selfID, oracle: oracle, replyDone: make(chan struct{}, 1)}
}

// Response implements transport.Responder.
func (v *Van) Response(req transport.RequestMeta) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.acks = append(v.acks, req)
}

// PullResponse implements transport.Responder.
func (v *Van) PullResponse(req transport.RequestMeta, data transport.KVPairs) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pulls = append(v.pulls, pullRecord{Req: req, Data: data})
}

// Send implements transport.Van. It records the message and
// immediately queues a synthetic reply so WaitForModelDistributionReply
// never blocks forever in tests that don't care about timing.
func (v *Van) Send(msg transport.Message) error {
	v.mu.Lock()
	v.sent = append(v.sent, msg)
	v.mu.Unlock()

	select {
	case v.replyDone <- struct{}{}:
	default:
	}
	return nil
}

// WaitForModelDistributionReply implements transport.Van.
func (v *Van) WaitForModelDistributionReply() error {
	<-v.replyDone
	v.mu.Lock()
	defer v.mu.Unlock()
	err := v.replyErr
	v.replyErr = nil
	return err
}

// FailNextReply makes the next WaitForModelDistributionReply call
// return err instead of nil, for exercising the transport-failure
// escalation path described in spec §7.
func (v *Van) FailNextReply(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.replyErr = err
}

// GetModelReceiver implements transport.Van by delegating to the
// configured oracle.
func (v *Van) GetModelReceiver(lastBandwidth int64, lastReceiver transport.NodeID, iteration int) transport.NodeID {
	if v.oracle == nil {
		return transport.Quit
	}
	return v.oracle.GetModelReceiver(lastBandwidth, lastReceiver, iteration)
}

// MyNodeID implements transport.Van.
func (v *Van) MyNodeID() transport.NodeID {
	return v.selfID
}

// NoticeWorkersOneIterationFinish implements transport.Van.
func (v *Van) NoticeWorkersOneIterationFinish(key uint64, iteration int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.finishNotices = append(v.finishNotices, finishNotice{Key: key, Iteration: iteration})
}

// FinishNotices returns every NoticeWorkersOneIterationFinish call
// recorded so far, in order.
func (v *Van) FinishNotices() []finishNotice {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]finishNotice(nil), v.finishNotices...)
}

// Acks returns every Response call recorded so far, in order.
func (v *Van) Acks() []transport.RequestMeta {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]transport.RequestMeta(nil), v.acks...)
}

// Pulls returns every PullResponse call recorded so far, in order.
func (v *Van) Pulls() []pullRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]pullRecord(nil), v.pulls...)
}

// Sent returns every Message passed to Send so far, in order.
func (v *Van) Sent() []transport.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]transport.Message(nil), v.sent...)
}
