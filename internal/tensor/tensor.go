package tensor

import (
	"sync"

	"github.com/pkg/errors"
)

// Tensor is the opaque host-memory handle described in the data model:
// it carries a shape, a dtype, a storage layout, and a lifetime that is
// managed entirely through Submit/WaitToRead rather than explicit
// free/release calls (the engine and the garbage collector own it).
//
// Dense tensors store every element contiguously in data. Row-sparse
// tensors either store every row contiguously (the "serving"/"master"
// case, where NumRows is fixed at allocation) or store only the rows
// that have actually been touched, keyed by row id in rows (the
// "merge"/gradient-buffer case, built with NewRowSparseSparse).
type Tensor struct {
	mu      sync.Mutex
	pending sync.WaitGroup

	dtype   Dtype
	layout  Layout
	shape   []int64
	data    []byte
	rows    map[int64][]byte
	numRows int64
	unitLen int64
}

// NewDense allocates a zero-filled dense tensor with the given shape.
func NewDense(dtype Dtype, shape ...int64) *Tensor {
	n := numElems(shape)
	return &Tensor{
		dtype:  dtype,
		layout: Dense,
		shape:  append([]int64(nil), shape...),
		data:   make([]byte, n*int64(dtype.ElemSize())),
	}
}

// NewDenseFromBytes allocates a dense tensor and copies data into it,
// casting from srcDtype if it differs from dtype. The returned tensor
// never aliases data: callers that hand in a caller-owned receive
// buffer are free to reuse or release it once this call returns.
func NewDenseFromBytes(dtype Dtype, shape []int64, srcDtype Dtype, data []byte) *Tensor {
	n := numElems(shape)
	return &Tensor{
		dtype:  dtype,
		layout: Dense,
		shape:  append([]int64(nil), shape...),
		data:   CastBytes(dtype, srcDtype, data, int(n)),
	}
}

// NewRowSparseDense allocates a fully materialized row-sparse tensor:
// every row from 0 to numRows-1 is present. This is the shape used for
// "serving" and "master" copies of a row-sparse key, which always hold
// a complete parameter even though a given round's gradients may only
// touch a subset of rows.
func NewRowSparseDense(dtype Dtype, numRows, unitLen int64) *Tensor {
	return &Tensor{
		dtype:   dtype,
		layout:  RowSparse,
		shape:   []int64{numRows, unitLen},
		data:    make([]byte, numRows*unitLen*int64(dtype.ElemSize())),
		numRows: numRows,
		unitLen: unitLen,
	}
}

// NewRowSparseSparse allocates a row-sparse tensor that only ever holds
// the rows explicitly written to it via SetRow/AddRow. Used for the
// per-round merge and gradient-cast scratch buffers, which need not
// cover every row in the key.
func NewRowSparseSparse(dtype Dtype, unitLen int64) *Tensor {
	return &Tensor{
		dtype:   dtype,
		layout:  RowSparse,
		shape:   []int64{0, unitLen},
		rows:    make(map[int64][]byte),
		unitLen: unitLen,
	}
}

func numElems(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

func (t *Tensor) Dtype() Dtype    { return t.dtype }
func (t *Tensor) Layout() Layout  { return t.layout }
func (t *Tensor) Shape() []int64  { return append([]int64(nil), t.shape...) }
func (t *Tensor) UnitLen() int64  { return t.unitLen }
func (t *Tensor) NumRows() int64  { return t.numRows }
func (t *Tensor) IsSparseBacked() bool { return t.layout == RowSparse && t.rows != nil }

// NumElems returns the total element count of a dense tensor.
func (t *Tensor) NumElems() int64 { return numElems(t.shape) }

// Bytes returns the dense backing buffer. Valid for Dense tensors and
// for dense-backed RowSparse tensors (serving/master); panics for
// sparse-backed row-sparse buffers, which have no single contiguous
// representation.
func (t *Tensor) Bytes() []byte {
	if t.rows != nil {
		panic("tensor: Bytes() called on sparse-backed row-sparse tensor")
	}
	return t.data
}

// WaitToRead blocks until every Submit-ed closure writing to t has
// completed. Callers must call this before reading or sending t's
// bytes, establishing the barrier §4.7 and §5 rely on.
func (t *Tensor) WaitToRead() {
	t.pending.Wait()
}

// Engine models the runtime's async compute-dependency graph: Submit
// schedules fn to run on a goroutine against t, registering it against
// t's pending-operations counter so a subsequent WaitToRead blocks
// until fn (and anything submitted before it) has completed.
type Engine struct{}

// Submit enqueues fn as an async mutation of t.
func (e *Engine) Submit(t *Tensor, fn func()) {
	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		t.mu.Lock()
		defer t.mu.Unlock()
		fn()
	}()
}

// CopyCast overwrites dst's dense contents with src's, casting dtypes
// as needed. Both tensors must be dense (or dense-backed row-sparse)
// and of identical shape.
func CopyCast(dst, src *Tensor) {
	if dst.rows != nil || src.rows != nil {
		panic("tensor: CopyCast requires dense-backed tensors")
	}
	n := int(numElems(dst.shape))
	dst.data = CastBytes(dst.dtype, src.dtype, src.data, n)
}

// AddCast adds src into dst elementwise, casting as needed. Both
// tensors must be dense (or dense-backed row-sparse) of identical
// shape.
func AddCast(dst, src *Tensor) {
	if dst.rows != nil || src.rows != nil {
		panic("tensor: AddCast requires dense-backed tensors")
	}
	n := int(numElems(dst.shape))
	AddBytes(dst.dtype, dst.data, src.dtype, src.data, n)
}

// Row returns the unitLen-element row at rowID as stored, without a
// copy or cast. Rows are always stored in t's dtype, since SetRow and
// AddRow cast on write.
func (t *Tensor) Row(rowID int64) ([]byte, bool) {
	if t.rows != nil {
		b, ok := t.rows[rowID]
		return b, ok
	}
	if rowID < 0 || rowID >= t.numRows {
		return nil, false
	}
	sz := int64(t.dtype.ElemSize())
	start := rowID * t.unitLen * sz
	end := start + t.unitLen*sz
	return t.data[start:end], true
}

// SetRow overwrites (or, for sparse-backed tensors, creates) the row
// at rowID with data, casting from srcDtype.
func (t *Tensor) SetRow(rowID int64, srcDtype Dtype, data []byte) {
	cast := CastBytes(t.dtype, srcDtype, data, int(t.unitLen))
	if t.rows != nil {
		t.rows[rowID] = cast
		if rowID+1 > t.numRows {
			t.numRows = rowID + 1
		}
		return
	}
	sz := int64(t.dtype.ElemSize())
	start := rowID * t.unitLen * sz
	copy(t.data[start:start+t.unitLen*sz], cast)
}

// AddRow adds data (encoded as srcDtype) into the row at rowID,
// creating the row first (as zeros) if it does not yet exist.
func (t *Tensor) AddRow(rowID int64, srcDtype Dtype, data []byte) {
	if t.rows != nil {
		existing, ok := t.rows[rowID]
		if !ok {
			existing = make([]byte, t.unitLen*int64(t.dtype.ElemSize()))
			t.rows[rowID] = existing
			if rowID+1 > t.numRows {
				t.numRows = rowID + 1
			}
		}
		AddBytes(t.dtype, existing, srcDtype, data, int(t.unitLen))
		return
	}
	sz := int64(t.dtype.ElemSize())
	start := rowID * t.unitLen * sz
	end := start + t.unitLen*sz
	AddBytes(t.dtype, t.data[start:end], srcDtype, data, int(t.unitLen))
}

// RowIDs returns the set of row ids currently materialized in a
// sparse-backed row-sparse tensor, in no particular order.
func (t *Tensor) RowIDs() []int64 {
	if t.rows == nil {
		panic("tensor: RowIDs() called on dense-backed tensor")
	}
	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	return ids
}

// MergeRowsInto copies (overwrite, not accumulate) every row present
// in src into dst, casting dtypes as needed. Used as the row-sparse
// analogue of CopyCast when no updater is registered: §4.7's fallback
// "copy merge into target" semantics, specialized to only touch the
// rows that were actually aggregated this round.
func MergeRowsInto(dst, src *Tensor) error {
	if src.rows == nil {
		return errors.New("tensor: MergeRowsInto requires a sparse-backed source")
	}
	for rowID, data := range src.rows {
		dst.SetRow(rowID, src.dtype, data)
	}
	return nil
}

// AccumulateRows adds every row present in src into dst's
// corresponding row (creating it if necessary), casting as needed.
// Mirrors AccumulateRowSparseGrads: merging a newly received sparse
// gradient into the in-flight merge buffer.
func AccumulateRows(dst, src *Tensor) error {
	if src.rows == nil {
		return errors.New("tensor: AccumulateRows requires a sparse-backed source")
	}
	for rowID, data := range src.rows {
		dst.AddRow(rowID, src.dtype, data)
	}
	return nil
}
