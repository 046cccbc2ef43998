package server

import (
	"github.com/dreamware/paramserver/internal/tensor"
	"github.com/dreamware/paramserver/internal/transport"
)

// pullResponse implements the Pull Response path (spec §4.8) for a
// normal pull: serving's bytes, copied out after the wait-to-read
// barrier so the reply never observes a torn write.
func (s *Server) pullResponse(k *keyRecord, meta transport.RequestMeta) {
	k.serving.WaitToRead()
	payload := densePullPayload(meta.Key, k.serving)
	s.responder.PullResponse(meta, payload)
}

// autoPullResponse is the LE-method / ENABLE_TSENGINE variant of §4.8:
// the applier pushes the freshly updated value back to the request's
// originator without that originator having issued a separate pull.
// It is still delivered over Responder.PullResponse — the distinction
// from a normal pull is only that the applier, not a pull request,
// triggers it. The reply carries no version number: applyUpdate bumps
// k.version, which is readable through Server.Version, but it is not
// sent.
func (s *Server) autoPullResponse(k *keyRecord, meta transport.RequestMeta) {
	k.serving.WaitToRead()
	payload := densePullPayload(meta.Key, k.serving)
	s.responder.PullResponse(meta, payload)
}

func densePullPayload(key uint64, t *tensor.Tensor) transport.KVPairs {
	b := t.Bytes()
	out := make([]byte, len(b))
	copy(out, b)
	return transport.KVPairs{
		Keys: []uint64{key},
		Vals: out,
		Lens: []int32{int32(len(out))},
	}
}
