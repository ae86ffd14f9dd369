package ipc

import "fmt"

// Channel identifies one logical stream multiplexed over the server's
// stdout. The byte value is the on-wire encoding.
type Channel byte

// Channel bytes per PROTOCOL.md.
const (
	// ChannelOutput carries command output bytes.
	ChannelOutput Channel = 'o'
	// ChannelError carries command diagnostic bytes.
	ChannelError Channel = 'e'
	// ChannelResult ends a command; its payload is the exit code.
	ChannelResult Channel = 'r'
	// ChannelDebug carries server-side debug output.
	ChannelDebug Channel = 'd'
	// ChannelLineInput requests one line of input from the client.
	ChannelLineInput Channel = 'L'
	// ChannelByteInput requests raw input bytes from the client.
	ChannelByteInput Channel = 'I'
)

// Class partitions channels by dispatch behavior.
type Class int

const (
	// ClassInvalid marks bytes that are not a known channel.
	ClassInvalid Class = iota
	// ClassOutput frames carry a payload routed to a caller sink.
	ClassOutput
	// ClassPrompt frames carry no payload; the header length is the
	// maximum reply size the server accepts.
	ClassPrompt
	// ClassResult frames carry the 4-byte exit code and end a command.
	ClassResult
)

// channelClasses is the single source of truth for channel semantics.
// The decoder rejects any byte absent from this table, and dispatch
// switches on the class rather than the channel byte. Adding a channel
// means adding exactly one entry here.
var channelClasses = map[Channel]Class{
	ChannelOutput:    ClassOutput,
	ChannelError:     ClassOutput,
	ChannelDebug:     ClassOutput,
	ChannelResult:    ClassResult,
	ChannelLineInput: ClassPrompt,
	ChannelByteInput: ClassPrompt,
}

// Class returns the dispatch class for the channel, or ClassInvalid for
// bytes outside the protocol.
func (c Channel) Class() Class {
	return channelClasses[c]
}

// Valid reports whether the byte is a known channel.
func (c Channel) Valid() bool {
	_, ok := channelClasses[c]
	return ok
}

func (c Channel) String() string {
	switch c {
	case ChannelOutput:
		return "output"
	case ChannelError:
		return "error"
	case ChannelResult:
		return "result"
	case ChannelDebug:
		return "debug"
	case ChannelLineInput:
		return "line-input"
	case ChannelByteInput:
		return "byte-input"
	default:
		return fmt.Sprintf("invalid(0x%02x)", byte(c))
	}
}
