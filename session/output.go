package session

import (
	"bytes"
	"context"

	"github.com/justapithecus/cinnabar/ipc"
)

// CommandResult is the captured output of one command.
type CommandResult struct {
	// Stdout holds the output-channel bytes decoded per the session
	// encoding.
	Stdout string
	// Stderr holds the error-channel bytes decoded per the session
	// encoding.
	Stderr string
	// ExitCode is the command's result code. Interpreting it is the
	// caller's business; see CheckExit.
	ExitCode int
}

// GetCommandOutput runs a command with in-memory sinks bound to the
// output and error channels and returns the captured result. Input
// providers are forwarded unchanged. Both captures are decoded per the
// encoding negotiated at handshake; bytes that do not decode pass through
// raw.
func (s *Session) GetCommandOutput(ctx context.Context, args []string, providers Providers) (*CommandResult, error) {
	var stdout, stderr bytes.Buffer
	sinks := Sinks{
		ipc.ChannelOutput: &stdout,
		ipc.ChannelError:  &stderr,
	}

	code, err := s.RunCommand(ctx, args, sinks, providers)
	if err != nil {
		return nil, err
	}

	return &CommandResult{
		Stdout:   s.decodeText(stdout.Bytes()),
		Stderr:   s.decodeText(stderr.Bytes()),
		ExitCode: code,
	}, nil
}

// decodeText converts captured bytes into a string per the negotiated
// encoding. Input the decoder rejects passes through raw.
func (s *Session) decodeText(b []byte) string {
	if s.textEnc == nil || len(b) == 0 {
		return string(b)
	}
	decoded, err := s.textEnc.NewDecoder().Bytes(b)
	if err != nil {
		s.logger.Debug("output decode failed, passing raw bytes", map[string]any{
			"encoding": s.encoding,
			"error":    err.Error(),
		})
		return string(b)
	}
	return string(decoded)
}

// CheckExit converts an unexpected exit code into a *CommandError carrying
// the result. A matching exit code returns nil.
func CheckExit(res *CommandResult, want int, msg string) error {
	if res.ExitCode == want {
		return nil
	}
	return &CommandError{Msg: msg, Result: res}
}
