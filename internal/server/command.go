package server

import (
	"github.com/pkg/errors"

	"github.com/dreamware/paramserver/internal/profiler"
	"github.com/dreamware/paramserver/internal/transport"
)

// Command is a control-channel request (spec §6, §4.10), distinct from
// the data-channel Request the dispatcher handles.
type Command struct {
	Head transport.CommandHead
	Body string
	Fn   func() // only meaningful for Controller
}

// HandleCommand implements the Command Handler (spec §4.10). It
// acknowledges via ack on every return, including an error return. For
// StopServer it acknowledges before stopping the executor, since Stop
// blocks until the executor has drained and exited.
func (s *Server) HandleCommand(cmd Command, ack func()) error {
	switch cmd.Head {
	case transport.Controller:
		if cmd.Fn != nil {
			s.exec.Exec(cmd.Fn)
		}
	case transport.SetMultiPrecision:
		if err := s.EnableMultiPrecision(); err != nil {
			ack()
			return err
		}
	case transport.StopServer:
		ack()
		s.exec.Stop()
		return nil
	case transport.SyncMode:
		s.syncMode.Store(true)
	case transport.SetGradientCompression:
		if s.codec == nil {
			panic(errors.New("server: SetGradientCompression received with no codec configured"))
		}
		if err := s.codec.DecodeParams(cmd.Body); err != nil {
			ack()
			return errors.Wrap(err, "server: configuration parse error")
		}
	case transport.SetProfilerParams:
		if s.profiler == nil {
			panic(errors.New("server: SetProfilerParams received with no profiler configured"))
		}
		if err := profiler.Dispatch(s.profiler, cmd.Body); err != nil {
			ack()
			return errors.Wrap(err, "server: configuration parse error")
		}
	default:
		panic(errors.Errorf("server: unknown command head %d", cmd.Head))
	}
	ack()
	return nil
}
