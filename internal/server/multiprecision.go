package server

import (
	"github.com/pkg/errors"

	"github.com/dreamware/paramserver/internal/tensor"
)

// EnableMultiPrecision implements the Multi-Precision Retrofit (spec
// §4.11). It iterates every existing key (dense and row-sparse alike,
// per the SUPPLEMENTED FEATURES note grounded on
// CreateMultiPrecisionCopies's all-keys loop in the original), not
// just the one that triggered the SetMultiPrecision command.
func (s *Server) EnableMultiPrecision() error {
	s.multiPrecision.Store(true)

	var masters []*tensor.Tensor
	for id, k := range s.allKeys() {
		if k.serving.Dtype() == tensor.Float32 {
			continue
		}
		if len(k.pending) > 0 {
			panic(errors.Errorf("server: cannot enable multi-precision while key %d has an aggregation in flight", id))
		}

		if k.rowSparse {
			k.master = tensor.NewRowSparseDense(tensor.Float32, k.serving.NumRows(), k.serving.UnitLen())
			if k.merge != nil {
				k.merge = tensor.NewRowSparseSparse(tensor.Float32, k.serving.UnitLen())
			}
		} else {
			k.master = tensor.NewDense(tensor.Float32, k.serving.Shape()...)
			if k.merge != nil {
				k.merge = tensor.NewDense(tensor.Float32, k.serving.Shape()...)
			}
		}

		tensor.CopyCast(k.master, k.serving)
		masters = append(masters, k.master)
	}

	for _, m := range masters {
		m.WaitToRead()
	}
	return nil
}
