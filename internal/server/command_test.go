package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/paramserver/internal/compress"
	"github.com/dreamware/paramserver/internal/transport"
)

func TestHandleCommandControllerRunsOnExecutor(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	ran := false
	acked := false

	err := s.HandleCommand(Command{Head: transport.Controller, Fn: func() { ran = true }}, func() { acked = true })
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, acked)
}

func TestHandleCommandSetMultiPrecisionEnablesFlag(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	acked := false

	err := s.HandleCommand(Command{Head: transport.SetMultiPrecision}, func() { acked = true })
	require.NoError(t, err)
	assert.True(t, s.multiPrecision.Load())
	assert.True(t, acked)
}

func TestHandleCommandStopServerAcksBeforeStopping(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	acked := false

	err := s.HandleCommand(Command{Head: transport.StopServer}, func() { acked = true })
	require.NoError(t, err)
	assert.True(t, acked)

	assert.Panics(t, func() {
		s.exec.Exec(func() {})
	})
}

func TestHandleCommandSetGradientCompressionRequiresCodec(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	assert.Panics(t, func() {
		_ = s.HandleCommand(Command{Head: transport.SetGradientCompression, Body: "threshold:0.5"}, func() {})
	})
}

func TestHandleCommandSetGradientCompressionConfiguresCodec(t *testing.T) {
	codec := compress.NewTwoBitCodec(1.0)
	s, _ := newTestServer(t, Config{Codec: codec})
	acked := false

	err := s.HandleCommand(Command{Head: transport.SetGradientCompression, Body: "threshold:0.75"}, func() { acked = true })
	require.NoError(t, err)
	assert.True(t, acked)
}

func TestHandleCommandUnknownHeadPanics(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	assert.Panics(t, func() {
		_ = s.HandleCommand(Command{Head: transport.CommandHead(99)}, func() {})
	})
}
