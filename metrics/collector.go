// Package metrics provides session metrics collection.
//
// The Collector accumulates counters across the sessions that share it.
// It is a leaf package with no internal dependencies; frame counters are
// keyed by plain channel-name strings to keep it that way.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Session lifecycle
	SessionsOpened    int64
	SessionsClosed    int64
	SessionsCancelled int64

	// Server process
	LaunchSuccess    int64
	LaunchFailure    int64
	HandshakeFailure int64

	// Commands
	CommandsStarted   int64
	CommandsCompleted int64
	CommandsFailed    int64

	// Wire
	FramesRead      int64
	FramesByChannel map[string]int64
	BytesRead       int64
	BytesWritten    int64
	PromptsServed   int64
	ProtocolErrors  int64

	// Dimensions (informational, set at construction)
	Binary string
	Repo   string
}

// Collector accumulates metrics for one or more sessions.
// Thread-safe via sync.Mutex. All recording methods are nil-receiver safe,
// so callers that opt out of metrics pass nil and skip no branches.
type Collector struct {
	mu sync.Mutex

	// Session lifecycle
	sessionsOpened    int64
	sessionsClosed    int64
	sessionsCancelled int64

	// Server process
	launchSuccess    int64
	launchFailure    int64
	handshakeFailure int64

	// Commands
	commandsStarted   int64
	commandsCompleted int64
	commandsFailed    int64

	// Wire
	framesRead      int64
	framesByChannel map[string]int64
	bytesRead       int64
	bytesWritten    int64
	promptsServed   int64
	protocolErrors  int64

	// Dimensions
	binary string
	repo   string
}

// NewCollector creates a Collector with dimension labels. Both dimensions
// are informational; empty strings are fine for sessions without a
// repository or with the default binary.
func NewCollector(binary, repo string) *Collector {
	return &Collector{
		framesByChannel: make(map[string]int64),
		binary:          binary,
		repo:            repo,
	}
}

// --- Session lifecycle ---

// IncSessionOpened records a session reaching the ready state.
func (c *Collector) IncSessionOpened() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsOpened++
	c.mu.Unlock()
}

// IncSessionClosed records a session teardown, orderly or not.
func (c *Collector) IncSessionClosed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsClosed++
	c.mu.Unlock()
}

// IncSessionCancelled records an explicit cancel.
func (c *Collector) IncSessionCancelled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsCancelled++
	c.mu.Unlock()
}

// --- Server process ---

// IncLaunchSuccess records a successful server launch.
func (c *Collector) IncLaunchSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.launchSuccess++
	c.mu.Unlock()
}

// IncLaunchFailure records a failed server launch.
func (c *Collector) IncLaunchFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.launchFailure++
	c.mu.Unlock()
}

// IncHandshakeFailure records a server that launched but never produced a
// valid hello frame.
func (c *Collector) IncHandshakeFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.handshakeFailure++
	c.mu.Unlock()
}

// --- Commands ---

// IncCommandStarted records a command request hitting the wire.
func (c *Collector) IncCommandStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.commandsStarted++
	c.mu.Unlock()
}

// IncCommandCompleted records a command that reached its result frame.
// Nonzero exit codes still count as completed; the protocol ran clean.
func (c *Collector) IncCommandCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.commandsCompleted++
	c.mu.Unlock()
}

// IncCommandFailed records a command that died before its result frame.
func (c *Collector) IncCommandFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.commandsFailed++
	c.mu.Unlock()
}

// --- Wire ---

// AddFrameRead records one decoded frame on the named channel.
func (c *Collector) AddFrameRead(channel string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesRead++
	c.framesByChannel[channel]++
	c.mu.Unlock()
}

// AddBytesRead records bytes read off the server's stdout.
func (c *Collector) AddBytesRead(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesRead += n
	c.mu.Unlock()
}

// AddBytesWritten records bytes written to the server's stdin.
func (c *Collector) AddBytesWritten(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesWritten += n
	c.mu.Unlock()
}

// IncPromptServed records one prompt answered with a reply.
func (c *Collector) IncPromptServed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.promptsServed++
	c.mu.Unlock()
}

// IncProtocolError records a fatal wire error.
func (c *Collector) IncProtocolError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.protocolErrors++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byChannel := make(map[string]int64, len(c.framesByChannel))
	for k, v := range c.framesByChannel {
		byChannel[k] = v
	}

	return Snapshot{
		SessionsOpened:    c.sessionsOpened,
		SessionsClosed:    c.sessionsClosed,
		SessionsCancelled: c.sessionsCancelled,

		LaunchSuccess:    c.launchSuccess,
		LaunchFailure:    c.launchFailure,
		HandshakeFailure: c.handshakeFailure,

		CommandsStarted:   c.commandsStarted,
		CommandsCompleted: c.commandsCompleted,
		CommandsFailed:    c.commandsFailed,

		FramesRead:      c.framesRead,
		FramesByChannel: byChannel,
		BytesRead:       c.bytesRead,
		BytesWritten:    c.bytesWritten,
		PromptsServed:   c.promptsServed,
		ProtocolErrors:  c.protocolErrors,

		Binary: c.binary,
		Repo:   c.repo,
	}
}
