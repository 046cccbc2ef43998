package tensor

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// readElem decodes the value at element index i of buf (encoded as
// dtype) into a float64, the common currency used for casts between
// any two dtypes.
func readElem(dtype Dtype, buf []byte, i int) float64 {
	off := i * dtype.ElemSize()
	switch dtype {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	case Float16:
		return float64(float16.Frombits(binary.LittleEndian.Uint16(buf[off:])).Float32())
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(buf[off:])))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(buf[off:])))
	case Int8:
		return float64(int8(buf[off]))
	case UInt8:
		return float64(buf[off])
	default:
		panic("tensor: unsupported dtype in readElem")
	}
}

// writeElem encodes v into element index i of buf (encoded as dtype).
func writeElem(dtype Dtype, buf []byte, i int, v float64) {
	off := i * dtype.ElemSize()
	switch dtype {
	case Float32:
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v))
	case Float16:
		binary.LittleEndian.PutUint16(buf[off:], float16.Fromfloat32(float32(v)).Bits())
	case Int64:
		binary.LittleEndian.PutUint64(buf[off:], uint64(int64(v)))
	case Int32:
		binary.LittleEndian.PutUint32(buf[off:], uint32(int32(v)))
	case Int8:
		buf[off] = byte(int8(v))
	case UInt8:
		buf[off] = byte(v)
	default:
		panic("tensor: unsupported dtype in writeElem")
	}
}

// CastBytes converts n elements of src (encoded as srcDtype) into a
// freshly allocated buffer encoded as dstDtype. If the dtypes match it
// still returns a fresh copy, never an alias of src.
func CastBytes(dstDtype Dtype, srcDtype Dtype, src []byte, n int) []byte {
	out := make([]byte, n*dstDtype.ElemSize())
	if dstDtype == srcDtype {
		copy(out, src[:n*srcDtype.ElemSize()])
		return out
	}
	for i := 0; i < n; i++ {
		writeElem(dstDtype, out, i, readElem(srcDtype, src, i))
	}
	return out
}

// AddBytes adds n elements of src (encoded as srcDtype) into dst
// (encoded as dstDtype), in place, casting as necessary.
func AddBytes(dstDtype Dtype, dst []byte, srcDtype Dtype, src []byte, n int) {
	for i := 0; i < n; i++ {
		writeElem(dstDtype, dst, i, readElem(dstDtype, dst, i)+readElem(srcDtype, src, i))
	}
}
