// KeyRangeRegistry tracks the contiguous range of wire keys each server
// in the cluster owns, generalizing the teacher's ShardRegistry
// (internal/coordinator/shard_registry.go) from shard-id-per-key
// ownership to the single-contiguous-range-per-server convention
// spec.md §3 assumes: "ParameterId ... derived from a wire global key
// by subtracting the start of the local server's assigned key range."
package transport

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// KeyRange is a half-open interval [Start, End) of wire-level global
// keys assigned to one server.
type KeyRange struct {
	ServerID int
	Start    uint64
	End      uint64
}

// KeyRangeRegistry maps wire keys to the server that owns them and
// converts owned wire keys into local ParameterIds.
type KeyRangeRegistry struct {
	mu     sync.RWMutex
	ranges []KeyRange
	selfID int
}

// NewKeyRangeRegistry creates a registry whose local server identity is
// selfID; ranges must be assigned via Assign before lookups succeed.
func NewKeyRangeRegistry(selfID int) *KeyRangeRegistry {
	return &KeyRangeRegistry{selfID: selfID}
}

// Assign records that server serverID owns [start, end).
func (r *KeyRangeRegistry) Assign(serverID int, start, end uint64) error {
	if end <= start {
		return errors.Errorf("transport: invalid key range [%d, %d)", start, end)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.ranges {
		if start < existing.End && end > existing.Start {
			return errors.Errorf("transport: range [%d, %d) overlaps existing [%d, %d) owned by server %d",
				start, end, existing.Start, existing.End, existing.ServerID)
		}
	}
	r.ranges = append(r.ranges, KeyRange{ServerID: serverID, Start: start, End: end})
	return nil
}

// OwnerOf returns the server ID owning wireKey, or false if no range
// covers it.
func (r *KeyRangeRegistry) OwnerOf(wireKey uint64) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := slices.IndexFunc(r.ranges, func(rg KeyRange) bool {
		return wireKey >= rg.Start && wireKey < rg.End
	})
	if i < 0 {
		return 0, false
	}
	return r.ranges[i].ServerID, true
}

// ToLocal converts a wire key owned by this registry's selfID into a
// ParameterId by subtracting the start of the local range. It returns
// an error if the key isn't owned locally, which the dispatcher should
// treat as a protocol violation (spec §7).
func (r *KeyRangeRegistry) ToLocal(wireKey uint64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := slices.IndexFunc(r.ranges, func(rg KeyRange) bool {
		return rg.ServerID == r.selfID && wireKey >= rg.Start && wireKey < rg.End
	})
	if i < 0 {
		return 0, errors.Errorf("transport: wire key %d is not in any range owned by server %d", wireKey, r.selfID)
	}
	return int64(wireKey - r.ranges[i].Start), nil
}

// Ranges returns a copy of every assigned range.
func (r *KeyRangeRegistry) Ranges() []KeyRange {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ranges)
}
