package iox

import (
	"errors"
	"testing"
)

type spyCloser struct {
	closed bool
	err    error
}

func (s *spyCloser) Close() error { s.closed = true; return s.err }

func TestDiscardClose(t *testing.T) {
	s := &spyCloser{err: errors.New("ignored")}
	DiscardClose(s)
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	s := &spyCloser{}
	fn := CloseFunc(s)
	if s.closed {
		t.Fatal("Close called before invoking returned func")
	}
	fn()
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestAppendClose(t *testing.T) {
	closeErr := errors.New("close failed")

	var err error
	AppendClose(&err, &spyCloser{})
	if err != nil {
		t.Fatalf("clean close produced error: %v", err)
	}

	AppendClose(&err, &spyCloser{err: closeErr})
	if !errors.Is(err, closeErr) {
		t.Errorf("err = %v, want wrapped %v", err, closeErr)
	}

	prior := errors.New("prior failure")
	err = prior
	AppendClose(&err, &spyCloser{err: closeErr})
	if !errors.Is(err, prior) || !errors.Is(err, closeErr) {
		t.Errorf("err = %v, want both %v and %v preserved", err, prior, closeErr)
	}
}
