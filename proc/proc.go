// Package proc supervises the command-server child process.
//
// The server is launched with its three standard streams owned by this
// package: stdin and stdout become the protocol pipes, stderr drains
// continuously into a bounded diagnostic buffer so the child can never
// block on it. Teardown is either polite (close stdin, wait, kill on
// timeout) or immediate; both reap the child exactly once.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/justapithecus/cinnabar/iox"
)

// DefaultBinary is the executable used when Config.Binary is empty,
// resolved from PATH.
const DefaultBinary = "hg"

// diagBufferCap bounds the captured stderr. The head of the stream is
// what diagnoses launch and handshake failures; the rest is counted and
// dropped.
const diagBufferCap = 8 * 1024

// Config describes how to launch the command server.
type Config struct {
	// Binary is the server executable. Empty means DefaultBinary.
	Binary string
	// Repo is the repository path passed via -R. Empty launches the
	// server without a repository.
	Repo string
	// Config holds section.key=value overrides joined into a single
	// --config flag.
	Config []string
	// Encoding sets HGENCODING in the child environment. Empty inherits
	// whatever the parent environment dictates.
	Encoding string
	// ExtraEnv holds additional KEY=value entries appended to the
	// inherited environment. Later entries win over inherited ones.
	ExtraEnv []string
}

// commandArgs builds the server argv after the binary name.
func (c *Config) commandArgs() []string {
	args := []string{"serve", "--cmdserver", "pipe"}
	if c.Repo != "" {
		args = append(args, "-R", c.Repo)
	}
	if len(c.Config) > 0 {
		args = append(args, "--config", strings.Join(c.Config, ","))
	}
	return args
}

// environment builds the child environment. A nil return inherits the
// parent environment untouched.
func (c *Config) environment() []string {
	if c.Encoding == "" && len(c.ExtraEnv) == 0 {
		return nil
	}
	env := os.Environ()
	if c.Encoding != "" {
		env = append(env, "HGENCODING="+c.Encoding)
	}
	env = append(env, c.ExtraEnv...)
	return deduplicateEnv(env)
}

// Server is a running command-server child process.
type Server struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	diag   *diagBuffer

	stdinOnce sync.Once
	stdinErr  error

	waitOnce sync.Once
	waitErr  error
	exitCode int
}

// Launch starts the command server and takes ownership of its pipes.
// The child is not tied to ctx; it outlives the call and is torn down
// via Terminate or Kill.
func Launch(ctx context.Context, cfg *Config) (*Server, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binary := cfg.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	cmd := exec.Command(binary, cfg.commandArgs()...)
	cmd.Env = cfg.environment()

	diag := &diagBuffer{}
	cmd.Stderr = diag

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		iox.DiscardClose(stdin)
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", binary, err)
	}

	return &Server{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		diag:   diag,
	}, nil
}

// Stdin returns the writer feeding the server's stdin.
func (s *Server) Stdin() io.Writer {
	return s.stdin
}

// Stdout returns the reader for the server's stdout frames.
func (s *Server) Stdout() io.Reader {
	return s.stdout
}

// Pid returns the child process ID.
func (s *Server) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Diagnostics returns the captured stderr head, trimmed.
func (s *Server) Diagnostics() string {
	return s.diag.String()
}

// ExitCode returns the child's exit status. Only meaningful after
// Terminate or Kill; -1 marks signal death or an unreaped child.
func (s *Server) ExitCode() int {
	return s.exitCode
}

// Terminate shuts the server down politely: stdin closes (the server
// exits on EOF), the child gets grace to finish, then it is killed.
// The child is reaped either way.
func (s *Server) Terminate(grace time.Duration) error {
	var errs error

	s.stdinOnce.Do(func() { s.stdinErr = s.stdin.Close() })
	if s.stdinErr != nil {
		errs = multierr.Append(errs, fmt.Errorf("close stdin: %w", s.stdinErr))
	}

	done := make(chan struct{})
	go func() {
		s.reap()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		if err := s.signalKill(); err != nil {
			errs = multierr.Append(errs, err)
		}
		<-done
	}

	if _, err := s.reap(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// Kill terminates the server immediately and reaps it. Reaping closes
// the parent's pipe ends, so reads blocked on Stdout unblock with an
// error.
func (s *Server) Kill() error {
	var errs error
	if err := s.signalKill(); err != nil {
		errs = multierr.Append(errs, err)
	}
	s.stdinOnce.Do(func() { s.stdinErr = s.stdin.Close() })
	if _, err := s.reap(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (s *Server) signalKill() error {
	if s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill: %w", err)
	}
	return nil
}

// reap waits for the child exactly once and records its exit status.
// Exit statuses, including signal death after a kill, are expected and
// not errors; only a failed wait itself is.
func (s *Server) reap() (int, error) {
	s.waitOnce.Do(func() {
		err := s.cmd.Wait()
		if err == nil {
			s.exitCode = 0
			return
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				s.exitCode = status.ExitStatus()
			} else {
				s.exitCode = -1
			}
			return
		}
		s.exitCode = -1
		s.waitErr = fmt.Errorf("wait failed: %w", err)
	})
	return s.exitCode, s.waitErr
}

// deduplicateEnv keeps the last occurrence of each env var key.
// This ensures appended values (HGENCODING, ExtraEnv) win over inherited
// duplicates from os.Environ().
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}

// diagBuffer captures the head of the server's stderr. Write never
// fails, so the exec copier drains the pipe for the process lifetime
// regardless of how much the server complains.
type diagBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	dropped int64
}

func (d *diagBuffer) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if room := diagBufferCap - d.buf.Len(); room > 0 {
		if len(p) <= room {
			d.buf.Write(p)
		} else {
			d.buf.Write(p[:room])
			d.dropped += int64(len(p) - room)
		}
	} else {
		d.dropped += int64(len(p))
	}
	return len(p), nil
}

func (d *diagBuffer) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := strings.TrimSpace(d.buf.String())
	if d.dropped > 0 {
		out = fmt.Sprintf("%s... (%d bytes dropped)", out, d.dropped)
	}
	return out
}
