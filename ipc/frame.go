// Package ipc implements the command-server wire framing per PROTOCOL.md.
//
// The server multiplexes logical streams over its stdout as frames: a
// 5-byte header (one channel byte, one 4-byte big-endian length) followed
// by the payload for output and result channels. Prompt channels carry no
// payload; their length field is the maximum reply size the server
// accepts. Client writes are a command request or a bare length-prefixed
// reply, never channel-tagged.
package ipc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Frame size constants per PROTOCOL.md.
const (
	// HeaderSize is the size of a frame header: one channel byte plus a
	// 4-byte big-endian length.
	HeaderSize = 5
	// LengthPrefixSize is the size of a bare length prefix in bytes.
	// Command argument blocks and prompt replies carry no channel byte.
	LengthPrefixSize = 4
	// ResultPayloadSize is the exact payload size of a result frame.
	ResultPayloadSize = 4
)

// commandPreamble introduces every command request on the server's stdin.
const commandPreamble = "runcommand\n"

// FrameErrorKind classifies frame codec errors.
type FrameErrorKind int

const (
	// FrameErrorHeader indicates a header cut short mid-read.
	FrameErrorHeader FrameErrorKind = iota
	// FrameErrorChannel indicates an unknown channel byte.
	FrameErrorChannel
	// FrameErrorTruncated indicates a payload shorter than its header claims.
	FrameErrorTruncated
	// FrameErrorResult indicates a result payload that is not exactly 4 bytes.
	FrameErrorResult
)

// FrameError represents a frame codec error. Every FrameError is fatal to
// the stream: the protocol has no resynchronization point, so the session
// tears down on the first misframed byte.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError returns true if the error is a frame codec error.
func IsFrameError(err error) bool {
	var frameErr *FrameError
	return errors.As(err, &frameErr)
}

// Frame is one decoded unit of the protocol. For prompt channels the
// payload holds the 4-byte reply cap in wire form; no stream bytes were
// consumed beyond the header.
type Frame struct {
	Channel Channel
	Payload []byte
}

// Cap returns the maximum reply size of a prompt frame. Only meaningful
// when Channel.Class() is ClassPrompt.
func (f Frame) Cap() uint32 {
	return binary.BigEndian.Uint32(f.Payload)
}

// ExitCode decodes the signed 32-bit exit code of a result frame.
func (f Frame) ExitCode() (int32, error) {
	if len(f.Payload) != ResultPayloadSize {
		return 0, &FrameError{
			Kind: FrameErrorResult,
			Msg:  fmt.Sprintf("result payload is %d bytes, want %d", len(f.Payload), ResultPayloadSize),
		}
	}
	return int32(binary.BigEndian.Uint32(f.Payload)), nil
}

// decoderBufferSize sizes the read buffer. Headers are 5 bytes; without
// buffering every frame costs at least two pipe reads.
const decoderBufferSize = 64 * 1024

// Decoder decodes channel-tagged frames from the server's stdout. Reads
// are buffered internally, so all stream reads must flow through a single
// Decoder or bytes strand in the buffer.
type Decoder struct {
	reader *bufio.Reader
}

// NewDecoder creates a new frame decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReaderSize(r, decoderBufferSize)}
}

// ReadFrame reads a single frame from the stream.
//
// Errors:
//   - io.EOF: stream ended cleanly before any header byte
//   - *FrameError with Kind=FrameErrorHeader: header cut short
//   - *FrameError with Kind=FrameErrorChannel: unknown channel byte
//   - *FrameError with Kind=FrameErrorTruncated: payload cut short
func (d *Decoder) ReadFrame() (Frame, error) {
	var header [HeaderSize]byte
	_, err := io.ReadFull(d.reader, header[:])
	if err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		// Partial read of the header
		return Frame{}, &FrameError{
			Kind: FrameErrorHeader,
			Msg:  "malformed header",
			Err:  err,
		}
	}

	channel := Channel(header[0])
	length := binary.BigEndian.Uint32(header[1:])

	switch channel.Class() {
	case ClassPrompt:
		// No payload follows. Hand the cap back in wire form so Frame
		// stays a plain (channel, bytes) pair.
		payload := make([]byte, LengthPrefixSize)
		binary.BigEndian.PutUint32(payload, length)
		return Frame{Channel: channel, Payload: payload}, nil
	case ClassOutput, ClassResult:
		payload, err := d.readPayload(length)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Channel: channel, Payload: payload}, nil
	default:
		return Frame{}, &FrameError{
			Kind: FrameErrorChannel,
			Msg:  fmt.Sprintf("invalid channel %q", byte(channel)),
		}
	}
}

// readPayload block-reads exactly length bytes. The count stays unsigned
// end to end; payloads above the signed 32-bit range must arrive intact,
// not truncated.
func (d *Decoder) readPayload(length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorTruncated,
			Msg:  "truncated payload",
			Err:  err,
		}
	}
	return payload, nil
}

// Encoder writes command requests and prompt replies to the server's
// stdin. All length prefixes are big-endian per PROTOCOL.md; client
// writes never carry a channel byte.
type Encoder struct {
	writer io.Writer
}

// NewEncoder creates a new frame encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{writer: w}
}

// WriteCommand emits one command request: the literal "runcommand\n"
// preamble, the big-endian block length, and the NUL-separated argument
// block with no trailing NUL. The request goes out as a single write so
// no partial request is ever observable on the pipe.
func (e *Encoder) WriteCommand(args []string) error {
	block := EncodeArgs(args)
	buf := make([]byte, 0, len(commandPreamble)+LengthPrefixSize+len(block))
	buf = append(buf, commandPreamble...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(block)))
	buf = append(buf, block...)
	if _, err := e.writer.Write(buf); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// WriteReply emits one prompt reply: the big-endian data length followed
// by the data. An empty reply (length zero) tells the server the input
// stream is exhausted.
func (e *Encoder) WriteReply(data []byte) error {
	buf := make([]byte, 0, LengthPrefixSize+len(data))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	if _, err := e.writer.Write(buf); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}

// EncodeArgs joins argument tokens with NUL separators. Tokens may be
// empty; the separator count is always len(args)-1.
func EncodeArgs(args []string) []byte {
	return []byte(strings.Join(args, "\x00"))
}
