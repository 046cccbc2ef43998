// Package transport defines the RPC boundary spec.md treats as an
// external collaborator ("Postoffice + Van"): request/response
// metadata, the wire payload shape, and the two callback surfaces the
// server drives — Responder (inbound requests and acks) and the
// outbound sender used by the LE-method distribution loop (§4.9).
//
// This generalizes the teacher's internal/cluster (NodeInfo,
// PostJSON/GetJSON) from a coordinator-to-node HTTP client into a
// transport-agnostic contract; internal/transport/fake supplies an
// in-memory implementation for tests and for cmd/paramserver's default
// standalone mode.
package transport

// ControlCmd is the transport-side control-cmd observed by the server,
// distinct from the command-channel opcodes in CommandHead.
type ControlCmd int

const (
	Init ControlCmd = iota
	LocalAggregation
	ModelDistribution
)

func (c ControlCmd) String() string {
	switch c {
	case Init:
		return "INIT"
	case LocalAggregation:
		return "LOCAL_AGGREGATION"
	case ModelDistribution:
		return "MODEL_DISTRIBUTION"
	default:
		return "UNKNOWN"
	}
}

// CommandHead enumerates the integer head field of a control-channel
// command (spec §6, §4.10).
type CommandHead int

const (
	Controller CommandHead = iota
	SetMultiPrecision
	StopServer
	SyncMode
	SetGradientCompression
	SetProfilerParams
)

// NodeID identifies a peer in the cluster. Unknown and Quit are
// sentinel values the model-receiver oracle may return in place of a
// real node: Unknown seeds the LE-method loop's first iteration before
// any feedback exists; Quit terminates the loop.
type NodeID int

const (
	Unknown NodeID = -1
	Quit    NodeID = -2
)

// KVPairs is the push/pull wire payload: parallel keys/lens arrays
// alongside a flat byte buffer of values, per spec §6's
// "Push/pull request payload" convention.
type KVPairs struct {
	Keys []uint64
	Vals []byte
	Lens []int32
}

// RequestMeta carries everything about a request except its payload
// (spec §4.2's meta fields).
type RequestMeta struct {
	Sender         int
	Timestamp      int64
	Opcode         int
	Push           bool
	Pull           bool
	Cmd            ControlCmd
	NumMerge       int
	NumAggregation int
	Key            uint64
}

// Request is what the dispatcher receives from the transport.
type Request struct {
	Meta    RequestMeta
	Payload KVPairs
}

// Message is what the server sends outbound: either an ack/pull
// response to the original sender, or — on the LE-method distribution
// path — a MODEL_DISTRIBUTION push to a peer-selected receiver.
type Message struct {
	Cmd       ControlCmd
	Key       uint64
	Version   int
	Timestamp int64
	Receiver  NodeID
	Data      KVPairs
}

// Responder is how a flavor handler replies to the request that
// triggered it. Implementations must not block the calling goroutine
// on anything but the transport itself (spec §4.2: "the dispatcher
// never blocks on host callbacks").
type Responder interface {
	// Response sends an empty acknowledgement for req.
	Response(req RequestMeta)

	// PullResponse sends data back to the sender of a pull request.
	PullResponse(req RequestMeta, data KVPairs)
}

// Van is the outbound half of the transport, used by the LE-method
// distribution loop (§4.9) to push updated parameters to peers chosen
// by GetModelReceiver.
type Van interface {
	// Send transmits msg to msg.Receiver.
	Send(msg Message) error

	// WaitForModelDistributionReply blocks until the peer that
	// received the most recent Send acknowledges it.
	WaitForModelDistributionReply() error

	// GetModelReceiver asks the bandwidth-aware oracle for the next
	// distribution target. lastBandwidth is a negative microsecond
	// elapsed-time proxy (spec §4.9); the very first call in a loop
	// passes lastBandwidth == 0 and lastReceiver == Unknown. Returns
	// Quit to terminate the loop.
	GetModelReceiver(lastBandwidth int64, lastReceiver NodeID, iteration int) NodeID

	// MyNodeID returns this process's own identity. The server does not
	// call it; the profiler's filename prefix uses the rank the
	// profiler was constructed with.
	MyNodeID() NodeID

	// NoticeWorkersOneIterationFinish signals that one LE-method
	// aggregation round has completed for key, letting workers waiting
	// on that round proceed.
	NoticeWorkersOneIterationFinish(key uint64, iteration int)
}
