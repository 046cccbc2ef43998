package tensor

import "fmt"

// Dtype enumerates the numeric element types a Tensor can hold.
// Float32 is the canonical high-precision type: multi-precision mode
// keeps a Float32 master copy alongside a lower-precision serving
// copy in one of the other dtypes.
type Dtype int

const (
	Float32 Dtype = iota
	Float64
	Float16
	Int64
	Int32
	Int8
	UInt8
)

// ElemSize returns the number of bytes a single element of d occupies.
func (d Dtype) ElemSize() int {
	switch d {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16:
		return 2
	case Int8, UInt8:
		return 1
	default:
		panic(fmt.Sprintf("tensor: unknown dtype %d", int(d)))
	}
}

func (d Dtype) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case Int64:
		return "int64"
	case Int32:
		return "int32"
	case Int8:
		return "int8"
	case UInt8:
		return "uint8"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// Layout distinguishes the two storage shapes a KeyRecord's tensors can
// take: a fully dense buffer, or a row-sparse buffer addressed by row
// id, which either holds every row (serving/master copies) or only the
// rows a push actually touched (merge buffers).
type Layout int

const (
	Dense Layout = iota
	RowSparse
)

func (l Layout) String() string {
	if l == RowSparse {
		return "row_sparse"
	}
	return "dense"
}
