package server

import (
	"github.com/dreamware/paramserver/internal/tensor"
	"github.com/dreamware/paramserver/internal/transport"
)

// pendingDescriptor is one contribution toward the current aggregation
// window for a key (spec §3 "pending").
type pendingDescriptor struct {
	Req      transport.RequestMeta
	NumMerge int
}

// keyRecord is the per-ParameterId aggregation state described in
// spec §3. It generalizes the teacher's Shard (internal/shard/shard.go,
// one struct per owned key range with its own stats and mutex) down to
// one record per parameter rather than per range, since ownership here
// is single-writer-per-key by transport contract (§5) rather than
// lock-protected.
type keyRecord struct {
	serving *tensor.Tensor
	master  *tensor.Tensor // non-nil iff multi-precision and serving dtype != float32
	merge   *tensor.Tensor
	scratch *tensor.Tensor
	decomp  *tensor.Tensor

	pending []pendingDescriptor
	version int

	// numAggregationSoFar is the LE-method local-aggregation running
	// count (§4.6); unused outside that path.
	numAggregationSoFar int

	rowSparse bool
	unitLen   int64
}

func (k *keyRecord) targetTensor(multiPrecision bool) *tensor.Tensor {
	if multiPrecision && k.master != nil {
		return k.master
	}
	return k.serving
}

func (k *keyRecord) sourceTensor(sync bool) *tensor.Tensor {
	if sync {
		return k.merge
	}
	return k.scratch
}

func (k *keyRecord) pendingNumMerge() int {
	total := 0
	for _, p := range k.pending {
		total += p.NumMerge
	}
	return total
}
