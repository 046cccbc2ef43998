// Package tensor provides the in-process stand-in for the tensor runtime
// that a real parameter server would delegate to (allocation, dtype
// kernels, and an async compute-dependency engine). The rest of this
// module only ever talks to tensors through the primitives defined
// here — WaitToRead and the various cast/accumulate helpers — so a
// production build can swap this package for bindings onto a real
// tensor runtime without touching internal/server.
//
// Concurrency model:
//
//	Every Tensor carries a pending-operations counter. Submit queues a
//	closure on a goroutine and increments the counter; WaitToRead blocks
//	until it drains back to zero. This mirrors the "lazy ops sequenced
//	by a runtime dependency engine" + "wait-until-written" contract
//	described for the external tensor runtime, without requiring an
//	actual accelerator backend to be present.
//
// Dtype casts, including float16, go through CopyCast/AddCast so every
// call site gets the same rounding behavior. float16 conversions use
// github.com/x448/float16, the same library gomlx/gomlx documents using
// for Go-side float16 support.
package tensor
