// Package fake provides an in-memory, single-process transport used by
// tests and by cmd/paramserver's standalone mode, generalizing the
// teacher's HealthMonitor (internal/coordinator/health_monitor.go) from
// periodic up/down polling into the bandwidth-aware model-receiver
// oracle the LE-method distribution loop (spec §4.9) depends on.
package fake

import (
	"sync"

	"github.com/dreamware/paramserver/internal/transport"
)

// ModelReceiverOracle selects the next LE-method distribution target
// given feedback about the previous send's elapsed time. It keeps a
// per-peer bandwidth estimate and, within one distribution round,
// visits each peer at most once before returning transport.Quit —
// mirroring HealthMonitor's maxFailures-style bookkeeping but applied
// to a "pick the best candidate" policy instead of "mark unhealthy."
type ModelReceiverOracle struct {
	mu        sync.Mutex
	peers     []transport.NodeID
	estimate  map[transport.NodeID]int64 // last reported bandwidth per peer; larger (less negative) is better
	visited   map[int]map[transport.NodeID]bool
	checkFunc func(lastBandwidth int64, lastReceiver transport.NodeID, iteration int) transport.NodeID
}

// NewModelReceiverOracle creates an oracle that round-robins among
// peers ordered by their most recent bandwidth feedback, defaulting to
// visit order for peers with no feedback yet.
func NewModelReceiverOracle(peers []transport.NodeID) *ModelReceiverOracle {
	return &ModelReceiverOracle{
		peers:    append([]transport.NodeID(nil), peers...),
		estimate: make(map[transport.NodeID]int64),
		visited:  make(map[int]map[transport.NodeID]bool),
	}
}

// SetCheckFunction overrides the selection policy entirely, the same
// escape hatch HealthMonitor.SetCheckFunction gives tests over its
// default HTTP probe.
func (o *ModelReceiverOracle) SetCheckFunction(fn func(lastBandwidth int64, lastReceiver transport.NodeID, iteration int) transport.NodeID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checkFunc = fn
}

// GetModelReceiver implements transport.Van's oracle call. lastBandwidth
// is a negative microsecond-elapsed proxy per spec §4.9 (more negative
// == slower); it records the feedback for lastReceiver, then returns
// the best unvisited peer for this iteration, or transport.Quit once
// every peer has been visited.
func (o *ModelReceiverOracle) GetModelReceiver(lastBandwidth int64, lastReceiver transport.NodeID, iteration int) transport.NodeID {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.checkFunc != nil {
		return o.checkFunc(lastBandwidth, lastReceiver, iteration)
	}

	if lastReceiver != transport.Unknown && lastReceiver != transport.Quit {
		o.estimate[lastReceiver] = lastBandwidth
		o.markVisited(iteration, lastReceiver)
	}

	var best transport.NodeID = transport.Quit
	bestScore := int64(-1 << 62)
	found := false
	for _, p := range o.peers {
		if o.visitedSet(iteration)[p] {
			continue
		}
		score, ok := o.estimate[p]
		if !ok {
			score = 0 // unknown peers are tried before any negative-scored known peer
		}
		if !found || score > bestScore {
			best = p
			bestScore = score
			found = true
		}
	}
	if !found {
		return transport.Quit
	}
	return best
}

func (o *ModelReceiverOracle) visitedSet(iteration int) map[transport.NodeID]bool {
	v, ok := o.visited[iteration]
	if !ok {
		v = make(map[transport.NodeID]bool)
		o.visited[iteration] = v
	}
	return v
}

func (o *ModelReceiverOracle) markVisited(iteration int, peer transport.NodeID) {
	o.visitedSet(iteration)[peer] = true
}
