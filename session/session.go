// Package session drives a Mercurial command server over its pipe
// protocol per PROTOCOL.md: it launches the child process, performs the
// hello handshake, dispatches runcommand requests, and guarantees the
// child is released on every exit path.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/justapithecus/cinnabar/ipc"
	"github.com/justapithecus/cinnabar/log"
	"github.com/justapithecus/cinnabar/metrics"
	"github.com/justapithecus/cinnabar/proc"
)

// CapRunCommand gates RunCommand. A server that does not advertise it can
// still be inspected through Capabilities and Encoding.
const CapRunCommand = "runcommand"

// DefaultShutdownGrace bounds how long a polite shutdown waits for the
// child to exit after its stdin closes before killing it.
const DefaultShutdownGrace = 5 * time.Second

// State identifies a phase of the session lifecycle.
type State int

const (
	// StateLaunching means the child process is being spawned.
	StateLaunching State = iota
	// StateHandshaking means the child is running and the hello frame is
	// pending.
	StateHandshaking
	// StateReady means the session accepts commands.
	StateReady
	// StateRunning means a command is in flight and owns the pipes.
	StateRunning
	// StateClosed means the child is gone; operations fail with ErrClosed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLaunching:
		return "launching"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Transport abstracts the child process connection for testing.
type Transport interface {
	Stdin() io.Writer
	Stdout() io.Reader
	Diagnostics() string
	Terminate(grace time.Duration) error
	Kill() error
}

// ServerFactory creates a Transport. Used for test injection; when nil,
// Open launches a real child via proc.Launch.
type ServerFactory func(ctx context.Context, cfg *proc.Config) (Transport, error)

// Options configures Open.
type Options struct {
	// Repo is the repository path passed to the server via -R. Empty runs
	// the server without a repository.
	Repo string
	// Encoding overrides the server's text encoding via HGENCODING. Empty
	// accepts whatever the server negotiates.
	Encoding string
	// Config holds section.key=value overrides joined into a single
	// --config flag.
	Config []string
	// Binary is the server executable. Empty means proc.DefaultBinary.
	Binary string
	// ShutdownGrace bounds polite shutdown. Zero or negative means
	// DefaultShutdownGrace.
	ShutdownGrace time.Duration
	// LogOutput redirects session logs. Nil logs to stderr.
	LogOutput io.Writer
	// Collector receives session metrics. Nil disables collection; all
	// Collector methods are nil-safe.
	Collector *metrics.Collector
	// ServerFactory overrides child creation (for testing).
	ServerFactory ServerFactory
}

// Session is a live connection to one command-server child. Methods are
// safe for concurrent use; commands are serialized on the pipes, so at any
// moment one logical command owns the stream.
type Session struct {
	id        string
	logger    *log.Logger
	collector *metrics.Collector
	grace     time.Duration

	server Transport
	enc    *ipc.Encoder
	dec    *ipc.Decoder

	encoding     string
	capabilities map[string]struct{}
	textEnc      encoding.Encoding // nil means payloads pass through raw

	// runMu serializes pipe ownership: one command or close at a time.
	runMu sync.Mutex

	// stateMu guards state and cancelled. Held only for transitions,
	// never across I/O.
	stateMu   sync.Mutex
	state     State
	cancelled bool

	// lazyMu guards the memoized repository properties. Lock order is
	// lazyMu before runMu, never the reverse.
	lazyMu      sync.Mutex
	root        string
	haveRoot    bool
	configItems []ConfigItem
	version     *Version
}

// Open launches a command server and performs the hello handshake.
//
// Open flow:
//  1. Spawn the child (<binary> serve --cmdserver pipe [-R repo]).
//  2. Read exactly one hello frame on the output channel.
//  3. Parse the encoding and capability headers; both stay fixed for the
//     session's lifetime.
//
// On any failure the child is terminated before Open returns.
func Open(ctx context.Context, opts Options) (*Session, error) {
	id := uuid.NewString()
	logger := log.NewLogger(id, opts.Repo)
	if opts.LogOutput != nil {
		logger = logger.WithOutput(opts.LogOutput)
	}

	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	s := &Session{
		id:        id,
		logger:    logger,
		collector: opts.Collector,
		grace:     grace,
		state:     StateLaunching,
	}

	binary := opts.Binary
	if binary == "" {
		binary = proc.DefaultBinary
	}
	s.logger.Info("launching command server", map[string]any{
		"binary": binary,
		"repo":   opts.Repo,
	})

	server, err := s.launch(ctx, opts)
	if err != nil {
		s.collector.IncLaunchFailure()
		s.markClosed()
		s.logger.Error("launch failed", map[string]any{"error": err.Error()})
		return nil, &ServerError{Kind: ServerErrorLaunch, Msg: "launch failed", Err: err}
	}
	s.collector.IncLaunchSuccess()

	s.server = server
	s.enc = ipc.NewEncoder(&countingWriter{w: server.Stdin(), collector: s.collector})
	s.dec = ipc.NewDecoder(&countingReader{r: server.Stdout(), collector: s.collector})
	s.setState(StateHandshaking)

	if err := s.handshake(ctx); err != nil {
		s.collector.IncHandshakeFailure()
		s.logger.Error("handshake failed", map[string]any{"error": err.Error()})
		if termErr := server.Terminate(s.grace); termErr != nil {
			s.logger.Warn("failed to terminate after handshake failure", map[string]any{
				"error": termErr.Error(),
			})
		}
		s.markClosed()
		return nil, err
	}

	s.textEnc = lookupEncoding(s.encoding)
	s.setState(StateReady)
	s.collector.IncSessionOpened()
	s.logger.Info("session ready", map[string]any{
		"encoding":     s.encoding,
		"capabilities": len(s.capabilities),
	})
	return s, nil
}

// launch spawns the child, or whatever the test factory stands in for one.
func (s *Session) launch(ctx context.Context, opts Options) (Transport, error) {
	cfg := &proc.Config{
		Binary:   opts.Binary,
		Repo:     opts.Repo,
		Config:   opts.Config,
		Encoding: opts.Encoding,
	}
	if opts.ServerFactory != nil {
		return opts.ServerFactory(ctx, cfg)
	}
	return proc.Launch(ctx, cfg)
}

// handshake consumes the hello frame: the single unsolicited frame the
// server emits on the output channel, carrying newline-delimited
// "key: value" headers.
func (s *Session) handshake(ctx context.Context) error {
	// The hello read blocks until the child writes. The watchdog converts
	// ctx cancellation into a kill, which unblocks the read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.server.Kill()
		case <-done:
		}
	}()

	frame, err := s.dec.ReadFrame()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &ServerError{Kind: ServerErrorHandshake, Msg: "handshake aborted", Err: ctxErr}
		}
		return s.handshakeError("failed to read hello frame", err)
	}
	s.collector.AddFrameRead(frame.Channel.String())

	if frame.Channel != ipc.ChannelOutput {
		msg := fmt.Sprintf("hello frame on channel %s, want %s", frame.Channel, ipc.ChannelOutput)
		return s.handshakeError(msg, nil)
	}

	enc, caps, err := parseHello(frame.Payload)
	if err != nil {
		return s.handshakeError("bad handshake", err)
	}

	s.encoding = enc
	s.capabilities = caps
	return nil
}

// handshakeError builds the handshake ServerError, folding in whatever
// the child said on stderr.
func (s *Session) handshakeError(msg string, err error) error {
	if diag := s.server.Diagnostics(); diag != "" {
		msg = fmt.Sprintf("%s (server stderr: %s)", msg, diag)
	}
	return &ServerError{Kind: ServerErrorHandshake, Msg: msg, Err: err}
}

// parseHello parses the hello payload. Required headers: capabilities
// (whitespace-separated tokens) and encoding. Unknown headers are ignored;
// servers may add more.
func parseHello(payload []byte) (string, map[string]struct{}, error) {
	var enc string
	capabilities := make(map[string]struct{})
	seenCaps := false

	for _, line := range strings.Split(string(payload), "\n") {
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return "", nil, fmt.Errorf("malformed hello line %q", line)
		}
		switch key {
		case "capabilities":
			for _, c := range strings.Fields(value) {
				capabilities[c] = struct{}{}
			}
			seenCaps = true
		case "encoding":
			enc = value
		}
	}

	if !seenCaps {
		return "", nil, errors.New("missing capabilities header")
	}
	if enc == "" {
		return "", nil, errors.New("missing encoding header")
	}
	return enc, capabilities, nil
}

// ID returns the session identifier carried in logs and metrics.
func (s *Session) ID() string {
	return s.id
}

// Encoding returns the text encoding negotiated at handshake.
func (s *Session) Encoding() string {
	return s.encoding
}

// Capabilities returns the capability tokens advertised at handshake,
// sorted, in a freshly allocated slice.
func (s *Session) Capabilities() []string {
	caps := make([]string, 0, len(s.capabilities))
	for c := range s.capabilities {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	return caps
}

// HasCapability reports whether the server advertised the capability.
func (s *Session) HasCapability(name string) bool {
	_, ok := s.capabilities[name]
	return ok
}

// State reports the current lifecycle phase.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Close shuts the session down politely: the server's stdin closes, the
// child gets the shutdown grace to exit cleanly, then it is killed. Close
// waits for any in-flight command to finish first; use Cancel to interrupt
// one. Closing a closed session is a no-op returning nil.
func (s *Session) Close() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if !s.markClosed() {
		return nil
	}
	s.logger.Info("closing session", nil)
	err := s.server.Terminate(s.grace)
	s.collector.IncSessionClosed()
	if err != nil {
		s.logger.Warn("session terminated uncleanly", map[string]any{"error": err.Error()})
		return fmt.Errorf("terminate server: %w", err)
	}
	return nil
}

// Cancel hard-stops the session: the server's stdin closes, remaining
// frames drain within the shutdown grace, and the child is killed. An
// in-flight RunCommand fails with ErrCancelled. Unlike Close, Cancel does
// not wait for the in-flight command. Cancelling a closed session is a
// no-op.
func (s *Session) Cancel() {
	s.stateMu.Lock()
	if s.state == StateClosed {
		s.stateMu.Unlock()
		return
	}
	s.cancelled = true
	s.state = StateClosed
	s.stateMu.Unlock()

	s.collector.IncSessionCancelled()
	s.collector.IncSessionClosed()
	s.logger.Warn("cancelling session", nil)
	if err := s.server.Terminate(s.grace); err != nil {
		s.logger.Warn("session terminated uncleanly", map[string]any{"error": err.Error()})
	}
}

// teardownLocked kills the child and closes the session after a failure
// mid-command. The stream is mid-frame or mid-prompt; per PROTOCOL.md
// there is no resynchronization. Caller holds runMu.
func (s *Session) teardownLocked(err error) {
	s.logger.Error("session teardown", map[string]any{"error": err.Error()})
	if s.markClosed() {
		s.collector.IncSessionClosed()
	}
	if killErr := s.server.Kill(); killErr != nil {
		s.logger.Warn("failed to kill server", map[string]any{"error": killErr.Error()})
	}
}

// markClosed transitions to Closed and reports whether this call performed
// the transition.
func (s *Session) markClosed() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	return true
}

// transition moves from one state to another atomically; it reports false
// when the current state is not the expected one.
func (s *Session) transition(from, to State) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) setState(next State) {
	s.stateMu.Lock()
	prev := s.state
	s.state = next
	s.stateMu.Unlock()
	if prev != next {
		s.logger.Debug("state transition", map[string]any{
			"from": prev.String(),
			"to":   next.String(),
		})
	}
}

func (s *Session) isClosed() bool {
	return s.State() == StateClosed
}

func (s *Session) isCancelled() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.cancelled
}

// lookupEncoding resolves the negotiated encoding name to a decoder
// source. Nil means payloads pass through undecoded: UTF-8 and ASCII are
// already valid Go string bytes, and names the IANA index does not know
// have no decoder to offer.
func lookupEncoding(name string) encoding.Encoding {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8", "ascii", "us-ascii":
		return nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil
	}
	return enc
}

// countingWriter counts bytes pushed to the server's stdin.
type countingWriter struct {
	w         io.Writer
	collector *metrics.Collector
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.collector.AddBytesWritten(int64(n))
	return n, err
}

// countingReader counts bytes pulled from the server's stdout.
type countingReader struct {
	r         io.Reader
	collector *metrics.Collector
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.collector.AddBytesRead(int64(n))
	return n, err
}
