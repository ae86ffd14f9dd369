package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/justapithecus/cinnabar/ipc"
)

// Sinks routes output-class channels to caller-owned writers. Allowed
// keys are ipc.ChannelOutput, ipc.ChannelError, and ipc.ChannelDebug.
// Sinks are touched only for the duration of the RunCommand call that
// received them.
type Sinks map[ipc.Channel]io.Writer

// ReplyFunc produces the reply to one input prompt. replyCap is the
// largest reply the server accepts; longer replies are truncated to it.
// Returning no bytes signals EOF for the prompt.
type ReplyFunc func(replyCap uint32) ([]byte, error)

// Providers routes prompt-class channels to reply callbacks. Allowed keys
// are ipc.ChannelLineInput and ipc.ChannelByteInput. Providers run inline
// on the dispatching goroutine and must not call back into the session.
type Providers map[ipc.Channel]ReplyFunc

// RunCommand executes one command on the server and returns its exit
// code. Nonzero exit codes are not errors; interpreting them is the
// caller's business.
//
// Sinks receive output payloads in arrival order; an unmapped output
// channel is discarded. Providers answer input prompts; an unmapped
// prompt channel gets an empty reply, which the server reads as EOF.
//
// Commands are serialized: concurrent calls queue on an internal mutex,
// and all frames of one command precede the next command's request. A ctx
// already cancelled at entry fails fast with ctx.Err() and leaves the
// session usable; cancellation after the request is written cancels the
// whole session, because an abandoned command leaves the stream mid-frame.
func (s *Session) RunCommand(ctx context.Context, args []string, sinks Sinks, providers Providers) (int, error) {
	if len(args) == 0 {
		return 0, &ArgumentError{Msg: "empty argument vector"}
	}
	if err := validateSinks(sinks); err != nil {
		return 0, err
	}
	if err := validateProviders(providers); err != nil {
		return 0, err
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.isClosed() {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !s.HasCapability(CapRunCommand) {
		return 0, &ServerError{Kind: ServerErrorCapability, Msg: "unsupported capability: runcommand"}
	}
	if !s.transition(StateReady, StateRunning) {
		return 0, ErrClosed
	}

	// Killing the child is the only thing that unblocks a pending frame
	// read, so ctx cancellation mid-command is delivered by cancelling the
	// session.
	cmdDone := make(chan struct{})
	defer close(cmdDone)
	go func() {
		select {
		case <-cmdDone:
		case <-ctx.Done():
			select {
			case <-cmdDone:
			default:
				s.Cancel()
			}
		}
	}()

	s.collector.IncCommandStarted()
	s.logger.Debug("running command", map[string]any{"args": args})

	if err := s.enc.WriteCommand(args); err != nil {
		s.collector.IncCommandFailed()
		if s.isCancelled() {
			return 0, ErrCancelled
		}
		s.collector.IncProtocolError()
		srvErr := &ServerError{Kind: ServerErrorProtocol, Msg: "failed to write command", Err: err}
		s.teardownLocked(srvErr)
		return 0, srvErr
	}

	code, err := s.dispatch(ctx, sinks, providers)

	if s.isCancelled() {
		// Cancel won the race; whatever dispatch returned, the child is
		// gone and the stream with it.
		s.collector.IncCommandFailed()
		return 0, ErrCancelled
	}
	if err != nil {
		s.collector.IncCommandFailed()
		s.teardownLocked(err)
		return 0, err
	}
	if !s.transition(StateRunning, StateReady) {
		// Cancel fired between the result frame and here.
		s.collector.IncCommandFailed()
		return 0, ErrCancelled
	}

	s.collector.IncCommandCompleted()
	s.logger.Debug("command completed", map[string]any{"exit_code": code})
	return code, nil
}

// dispatch reads frames until the result frame and routes each one.
// Caller holds runMu and has already written the request.
func (s *Session) dispatch(ctx context.Context, sinks Sinks, providers Providers) (int, error) {
	for {
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		default:
		}

		frame, err := s.dec.ReadFrame()
		if err != nil {
			s.collector.IncProtocolError()
			if errors.Is(err, io.EOF) {
				return 0, &ServerError{Kind: ServerErrorProtocol, Msg: "server terminated early", Err: err}
			}
			return 0, &ServerError{Kind: ServerErrorProtocol, Msg: "frame read failed", Err: err}
		}
		s.collector.AddFrameRead(frame.Channel.String())

		switch frame.Channel.Class() {
		case ipc.ClassResult:
			code, err := frame.ExitCode()
			if err != nil {
				s.collector.IncProtocolError()
				return 0, &ServerError{Kind: ServerErrorProtocol, Msg: "malformed result frame", Err: err}
			}
			return int(code), nil

		case ipc.ClassOutput:
			if err := s.writeToSink(sinks, frame); err != nil {
				return 0, err
			}

		case ipc.ClassPrompt:
			if err := s.reply(frame, providers); err != nil {
				return 0, err
			}

		default:
			// The decoder rejects unknown channel bytes, so reaching here
			// means the channel table gained a class this switch does not
			// know.
			s.collector.IncProtocolError()
			return 0, &ServerError{Kind: ServerErrorProtocol, Msg: fmt.Sprintf("unhandled channel %s", frame.Channel)}
		}
	}
}

// writeToSink appends an output payload to the caller's sink for the
// channel. Unmapped channels are discarded; discarded debug traffic is
// logged so a chatty server stays visible.
func (s *Session) writeToSink(sinks Sinks, frame ipc.Frame) error {
	w, ok := sinks[frame.Channel]
	if !ok {
		if frame.Channel == ipc.ChannelDebug {
			s.logger.Debug("discarding debug payload", map[string]any{"bytes": len(frame.Payload)})
		}
		return nil
	}
	if _, err := w.Write(frame.Payload); err != nil {
		return fmt.Errorf("sink write for channel %s: %w", frame.Channel, err)
	}
	return nil
}

// reply answers one input prompt. Replies longer than the advertised cap
// are truncated; the server will not read past it. A provider error
// propagates without writing anything, leaving the prompt unanswered, so
// the caller of RunCommand sees the session torn down.
func (s *Session) reply(frame ipc.Frame, providers Providers) error {
	replyCap := frame.Cap()

	var data []byte
	if provide, ok := providers[frame.Channel]; ok {
		var err error
		data, err = provide(replyCap)
		if err != nil {
			return fmt.Errorf("input provider for channel %s: %w", frame.Channel, err)
		}
	}
	if uint64(len(data)) > uint64(replyCap) {
		data = data[:replyCap]
	}

	if err := s.enc.WriteReply(data); err != nil {
		s.collector.IncProtocolError()
		return &ServerError{Kind: ServerErrorProtocol, Msg: "failed to write prompt reply", Err: err}
	}
	s.collector.IncPromptServed()
	return nil
}

func validateSinks(sinks Sinks) error {
	for ch := range sinks {
		if ch.Class() != ipc.ClassOutput {
			return &ArgumentError{Msg: fmt.Sprintf("channel %s cannot take an output sink", ch)}
		}
	}
	return nil
}

func validateProviders(providers Providers) error {
	for ch := range providers {
		if ch.Class() != ipc.ClassPrompt {
			return &ArgumentError{Msg: fmt.Sprintf("channel %s cannot take an input provider", ch)}
		}
	}
	return nil
}
