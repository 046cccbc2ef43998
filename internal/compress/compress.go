// Package compress defines the gradient-compression codec contract
// the compressed-flavor handler and the SetGradientCompression control
// command dispatch through. spec.md treats the codec itself as an
// external collaborator; this package supplies that interface plus one
// concrete implementation so the server is runnable standalone,
// grounded on the two-bit quantization scheme referenced by
// original_source/src/kvstore/kvstore_dist_server.h's
// gradient_compression_ field.
package compress

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Codec dequantizes a compressed push payload into a full-precision
// tensor. Implementations must be safe for concurrent use by multiple
// keys, since the server holds no lock across a Dequantize call.
type Codec interface {
	// DecodeParams configures the codec from an opaque comma/colon
	// delimited blob, e.g. "type:2bit,threshold:0.5", the same shape
	// SetProfilerParams uses for its own config body.
	DecodeParams(raw string) error

	// Dequantize expands compressed (originalElems elements, as
	// float32) into dst, which must already be sized for
	// originalElems float32 values.
	Dequantize(compressed []byte, dst []byte, originalElems int) error
}

// TwoBitCodec implements a two-bit gradient compression scheme: each
// compressed byte packs four 2-bit buckets, each bucket decoding to one
// of {-threshold, 0, +threshold}.
type TwoBitCodec struct {
	threshold float32
}

// NewTwoBitCodec returns a codec with the given quantization
// threshold.
func NewTwoBitCodec(threshold float32) *TwoBitCodec {
	return &TwoBitCodec{threshold: threshold}
}

// DecodeParams parses "type:2bit,threshold:<float>"; the type key is
// accepted but ignored since this codec only ever implements 2bit.
func (c *TwoBitCodec) DecodeParams(raw string) error {
	for _, kv := range strings.Split(raw, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, ":", 2)
		if len(parts) != 2 {
			return errors.Errorf("compress: malformed param %q", kv)
		}
		key, val := parts[0], parts[1]
		switch key {
		case "threshold":
			f, err := strconv.ParseFloat(val, 32)
			if err != nil {
				return errors.Wrapf(err, "compress: bad threshold %q", val)
			}
			c.threshold = float32(f)
		case "type":
			// only 2bit is implemented; accept and ignore.
		default:
			return errors.Errorf("compress: unknown param %q", key)
		}
	}
	return nil
}

// twoBitValues maps each 2-bit bucket to its decoded magnitude
// multiplier.
var twoBitValues = [4]float32{-1, 0, 0, 1}

// Dequantize expands a two-bit-packed payload into dst as float32.
// Each source byte holds four buckets, most-significant pair first.
func (c *TwoBitCodec) Dequantize(compressed []byte, dst []byte, originalElems int) error {
	needBytes := (originalElems + 3) / 4
	if len(compressed) < needBytes {
		return errors.Errorf("compress: payload too short: have %d bytes, need %d for %d elements", len(compressed), needBytes, originalElems)
	}
	if len(dst) < originalElems*4 {
		return errors.Errorf("compress: dst too small: have %d bytes, need %d", len(dst), originalElems*4)
	}
	for i := 0; i < originalElems; i++ {
		b := compressed[i/4]
		shift := uint(6 - 2*(i%4))
		bucket := (b >> shift) & 0x3
		v := twoBitValues[bucket] * c.threshold
		writeFloat32(dst, i, v)
	}
	return nil
}

func writeFloat32(dst []byte, i int, v float32) {
	binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
}
