package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// encodeFrame encodes a channel-tagged frame (matches server output).
func encodeFrame(ch Channel, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = byte(ch)
	binary.BigEndian.PutUint32(buf[1:HeaderSize], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// encodePrompt encodes a prompt frame: header only, length is the reply cap.
func encodePrompt(ch Channel, replyCap uint32) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(ch)
	binary.BigEndian.PutUint32(buf[1:HeaderSize], replyCap)
	return buf
}

// encodeResult encodes a result frame carrying the given exit code.
func encodeResult(code int32) []byte {
	payload := make([]byte, ResultPayloadSize)
	binary.BigEndian.PutUint32(payload, uint32(code))
	return encodeFrame(ChannelResult, payload)
}

func TestDecoder_OutputFrames(t *testing.T) {
	tests := []struct {
		name    string
		channel Channel
		payload string
	}{
		{name: "output channel", channel: ChannelOutput, payload: "changeset: 0:abc\n"},
		{name: "error channel", channel: ChannelError, payload: "abort: no repository\n"},
		{name: "debug channel", channel: ChannelDebug, payload: "query 1; still entries\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder := NewDecoder(bytes.NewReader(encodeFrame(tt.channel, []byte(tt.payload))))
			frame, err := decoder.ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}

			if frame.Channel != tt.channel {
				t.Errorf("Channel = %v, want %v", frame.Channel, tt.channel)
			}
			if string(frame.Payload) != tt.payload {
				t.Errorf("Payload = %q, want %q", frame.Payload, tt.payload)
			}
			if frame.Channel.Class() != ClassOutput {
				t.Errorf("Class() = %v, want ClassOutput", frame.Channel.Class())
			}
		})
	}
}

// TestDecoder_CommandStream walks one full command's worth of frames and
// verifies they arrive in stream order with payloads intact.
func TestDecoder_CommandStream(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeFrame(ChannelOutput, []byte("adding foo\n")))
	buf.Write(encodeFrame(ChannelError, []byte("warning: bar\n")))
	buf.Write(encodeFrame(ChannelOutput, []byte("adding baz\n")))
	buf.Write(encodeResult(0))

	decoder := NewDecoder(&buf)

	var outputs []string
	for {
		frame, err := decoder.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		if frame.Channel == ChannelResult {
			code, err := frame.ExitCode()
			if err != nil {
				t.Fatalf("ExitCode failed: %v", err)
			}
			if code != 0 {
				t.Errorf("exit code = %d, want 0", code)
			}
			break
		}
		outputs = append(outputs, string(frame.Channel)+":"+string(frame.Payload))
	}

	want := []string{"o:adding foo\n", "e:warning: bar\n", "o:adding baz\n"}
	if len(outputs) != len(want) {
		t.Fatalf("got %d frames before result, want %d", len(outputs), len(want))
	}
	for i := range want {
		if outputs[i] != want[i] {
			t.Errorf("frame[%d] = %q, want %q", i, outputs[i], want[i])
		}
	}
}

// TestDecoder_PromptConsumesNoPayload validates that a prompt frame is
// header-only: the bytes following it belong to the next frame.
func TestDecoder_PromptConsumesNoPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodePrompt(ChannelLineInput, 4096))
	buf.Write(encodeFrame(ChannelOutput, []byte("after prompt")))

	decoder := NewDecoder(&buf)

	frame, err := decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if frame.Channel != ChannelLineInput {
		t.Errorf("Channel = %v, want ChannelLineInput", frame.Channel)
	}
	if frame.Channel.Class() != ClassPrompt {
		t.Errorf("Class() = %v, want ClassPrompt", frame.Channel.Class())
	}
	if frame.Cap() != 4096 {
		t.Errorf("Cap() = %d, want 4096", frame.Cap())
	}

	next, err := decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame after prompt failed: %v", err)
	}
	if next.Channel != ChannelOutput || string(next.Payload) != "after prompt" {
		t.Errorf("next frame = %v %q, want output %q", next.Channel, next.Payload, "after prompt")
	}
}

func TestDecoder_ByteInputPrompt(t *testing.T) {
	decoder := NewDecoder(bytes.NewReader(encodePrompt(ChannelByteInput, 1024)))
	frame, err := decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if frame.Channel != ChannelByteInput {
		t.Errorf("Channel = %v, want ChannelByteInput", frame.Channel)
	}
	if frame.Cap() != 1024 {
		t.Errorf("Cap() = %d, want 1024", frame.Cap())
	}
}

func TestFrame_ExitCode(t *testing.T) {
	tests := []struct {
		name string
		code int32
	}{
		{name: "success", code: 0},
		{name: "failure", code: 1},
		{name: "abort", code: 255},
		{name: "negative", code: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder := NewDecoder(bytes.NewReader(encodeResult(tt.code)))
			frame, err := decoder.ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			code, err := frame.ExitCode()
			if err != nil {
				t.Fatalf("ExitCode failed: %v", err)
			}
			if code != tt.code {
				t.Errorf("ExitCode() = %d, want %d", code, tt.code)
			}
		})
	}
}

// TestFrame_ExitCodeWrongSize validates that a result payload of any size
// other than 4 bytes is rejected.
func TestFrame_ExitCodeWrongSize(t *testing.T) {
	for _, n := range []int{0, 3, 5} {
		frame := Frame{Channel: ChannelResult, Payload: make([]byte, n)}
		_, err := frame.ExitCode()
		if err == nil {
			t.Fatalf("ExitCode accepted %d-byte payload", n)
		}

		var frameErr *FrameError
		if !errors.As(err, &frameErr) {
			t.Fatalf("expected *FrameError, got %T", err)
		}
		if frameErr.Kind != FrameErrorResult {
			t.Errorf("Kind = %v, want FrameErrorResult", frameErr.Kind)
		}
	}
}

// TestDecoder_InvalidChannel validates that an unknown channel byte is
// fatal. The stream has no resynchronization point past a bad byte.
func TestDecoder_InvalidChannel(t *testing.T) {
	decoder := NewDecoder(bytes.NewReader(encodeFrame('?', []byte("junk"))))
	_, err := decoder.ReadFrame()

	if err == nil {
		t.Fatal("expected error for invalid channel byte")
	}
	if !IsFrameError(err) {
		t.Errorf("expected frame error, got: %v", err)
	}

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T", err)
	}
	if frameErr.Kind != FrameErrorChannel {
		t.Errorf("Kind = %v, want FrameErrorChannel", frameErr.Kind)
	}
	if !strings.Contains(frameErr.Error(), "invalid channel") {
		t.Errorf("error message %q does not name the invalid channel", frameErr.Error())
	}
}

func TestDecoder_EmptyStream(t *testing.T) {
	decoder := NewDecoder(bytes.NewReader(nil))
	_, err := decoder.ReadFrame()

	if err != io.EOF {
		t.Errorf("expected io.EOF, got: %v", err)
	}
}

// TestDecoder_TruncatedHeader validates the error when the stream dies
// partway through the 5-byte header.
func TestDecoder_TruncatedHeader(t *testing.T) {
	decoder := NewDecoder(bytes.NewReader([]byte{'o', 0x00, 0x00}))
	_, err := decoder.ReadFrame()

	if err == nil {
		t.Fatal("expected error for truncated header")
	}

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T", err)
	}
	if frameErr.Kind != FrameErrorHeader {
		t.Errorf("Kind = %v, want FrameErrorHeader", frameErr.Kind)
	}
}

// TestDecoder_TruncatedPayload validates the error when the stream carries
// fewer payload bytes than the header claims.
func TestDecoder_TruncatedPayload(t *testing.T) {
	full := encodeFrame(ChannelOutput, []byte("0123456789"))
	truncated := full[:HeaderSize+4]

	decoder := NewDecoder(bytes.NewReader(truncated))
	_, err := decoder.ReadFrame()

	if err == nil {
		t.Fatal("expected error for truncated payload")
	}

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T", err)
	}
	if frameErr.Kind != FrameErrorTruncated {
		t.Errorf("Kind = %v, want FrameErrorTruncated", frameErr.Kind)
	}
}

func TestDecoder_ZeroLengthPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeFrame(ChannelOutput, nil))
	buf.Write(encodeResult(0))

	decoder := NewDecoder(&buf)
	frame, err := decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if frame.Channel != ChannelOutput || len(frame.Payload) != 0 {
		t.Errorf("frame = %v with %d payload bytes, want empty output frame", frame.Channel, len(frame.Payload))
	}

	if _, err := decoder.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame after empty frame failed: %v", err)
	}
}

// TestDecoder_FragmentedReads validates that payload reads block until the
// full count arrives even when the pipe delivers one byte at a time.
func TestDecoder_FragmentedReads(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 300)
	var buf bytes.Buffer
	buf.Write(encodeFrame(ChannelOutput, payload))
	buf.Write(encodeResult(0))

	decoder := NewDecoder(iotest.OneByteReader(&buf))

	frame, err := decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Errorf("payload length = %d, want %d", len(frame.Payload), len(payload))
	}

	result, err := decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame for result failed: %v", err)
	}
	if result.Channel != ChannelResult {
		t.Errorf("Channel = %v, want ChannelResult", result.Channel)
	}
}

func TestEncoder_WriteCommand(t *testing.T) {
	var buf bytes.Buffer
	encoder := NewEncoder(&buf)

	if err := encoder.WriteCommand([]string{"log", "-l", "5"}); err != nil {
		t.Fatalf("WriteCommand failed: %v", err)
	}

	want := append([]byte("runcommand\n"), 0x00, 0x00, 0x00, 0x08)
	want = append(want, []byte("log\x00-l\x005")...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("wire bytes = %q, want %q", buf.Bytes(), want)
	}
}

func TestEncoder_WriteCommand_SingleArg(t *testing.T) {
	var buf bytes.Buffer
	encoder := NewEncoder(&buf)

	if err := encoder.WriteCommand([]string{"root"}); err != nil {
		t.Fatalf("WriteCommand failed: %v", err)
	}

	want := append([]byte("runcommand\n"), 0x00, 0x00, 0x00, 0x04)
	want = append(want, []byte("root")...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("wire bytes = %q, want %q", buf.Bytes(), want)
	}
}

// TestEncoder_WriteReply validates the reply framing: a bare big-endian
// length and the data, no channel byte.
func TestEncoder_WriteReply(t *testing.T) {
	var buf bytes.Buffer
	encoder := NewEncoder(&buf)

	if err := encoder.WriteReply([]byte("hi\n")); err != nil {
		t.Fatalf("WriteReply failed: %v", err)
	}

	want := []byte{0x00, 0x00, 0x00, 0x03, 'h', 'i', '\n'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("wire bytes = %q, want %q", buf.Bytes(), want)
	}
}

// TestEncoder_WriteReply_Empty validates the EOF reply: length zero, no data.
func TestEncoder_WriteReply_Empty(t *testing.T) {
	var buf bytes.Buffer
	encoder := NewEncoder(&buf)

	if err := encoder.WriteReply(nil); err != nil {
		t.Fatalf("WriteReply failed: %v", err)
	}

	want := []byte{0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("wire bytes = %q, want %q", buf.Bytes(), want)
	}
}

func TestEncodeArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "single", args: []string{"summary"}, want: "summary"},
		{name: "multiple", args: []string{"add", "foo", "bar"}, want: "add\x00foo\x00bar"},
		{name: "empty token", args: []string{"commit", "-m", ""}, want: "commit\x00-m\x00"},
		{name: "utf-8", args: []string{"commit", "-m", "café"}, want: "commit\x00-m\x00café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeArgs(tt.args)
			if string(got) != tt.want {
				t.Errorf("EncodeArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChannel_Class(t *testing.T) {
	tests := []struct {
		channel Channel
		class   Class
		valid   bool
	}{
		{ChannelOutput, ClassOutput, true},
		{ChannelError, ClassOutput, true},
		{ChannelDebug, ClassOutput, true},
		{ChannelResult, ClassResult, true},
		{ChannelLineInput, ClassPrompt, true},
		{ChannelByteInput, ClassPrompt, true},
		{Channel('x'), ClassInvalid, false},
		{Channel(0), ClassInvalid, false},
	}

	for _, tt := range tests {
		if got := tt.channel.Class(); got != tt.class {
			t.Errorf("Channel(%q).Class() = %v, want %v", byte(tt.channel), got, tt.class)
		}
		if got := tt.channel.Valid(); got != tt.valid {
			t.Errorf("Channel(%q).Valid() = %v, want %v", byte(tt.channel), got, tt.valid)
		}
	}
}

// TestFrameError_ErrorMessage validates error message formatting.
func TestFrameError_ErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *FrameError
		contains string
	}{
		{
			name:     "without underlying error",
			err:      &FrameError{Kind: FrameErrorChannel, Msg: "invalid channel 'x'"},
			contains: "invalid channel",
		},
		{
			name: "with underlying error",
			err: &FrameError{
				Kind: FrameErrorTruncated,
				Msg:  "truncated payload",
				Err:  io.ErrUnexpectedEOF,
			},
			contains: "unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			if !strings.Contains(msg, tt.contains) {
				t.Errorf("error message %q does not contain %q", msg, tt.contains)
			}
		})
	}
}

// TestFrameError_Unwrap validates error unwrapping.
func TestFrameError_Unwrap(t *testing.T) {
	underlying := io.ErrUnexpectedEOF
	err := &FrameError{
		Kind: FrameErrorHeader,
		Msg:  "test",
		Err:  underlying,
	}

	if !errors.Is(err, underlying) {
		t.Error("Unwrap should allow errors.Is to find underlying error")
	}
}

// TestIsFrameError_NonFrameError validates IsFrameError with other errors.
func TestIsFrameError_NonFrameError(t *testing.T) {
	if IsFrameError(errors.New("regular error")) {
		t.Error("regular errors should not be frame errors")
	}
	if IsFrameError(nil) {
		t.Error("nil should not be a frame error")
	}
	if IsFrameError(io.EOF) {
		t.Error("io.EOF should not be a frame error")
	}
}
