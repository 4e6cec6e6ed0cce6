package esl

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"time"
)

// Transport is a duplex byte stream framed on FrameTerminator.
type Transport interface {
	// ReadFrame blocks until a full frame, including its terminator, is read.
	ReadFrame() (string, error)

	// ReadBody reads exactly n bytes following a header frame.
	ReadBody(n int) (string, error)

	// WriteFrame writes text plus the terminator and flushes.
	WriteFrame(text string) error

	// SetReadDeadline bounds pending and future reads. The zero time removes
	// the deadline.
	SetReadDeadline(t time.Time) error

	// Close closes the stream. Blocked reads fail.
	Close() error
}

// conn is the net.Conn backed Transport. Bytes read before an error (such as
// an expired deadline) are kept and completed by the next call.
type conn struct {
	c net.Conn
	r *bufio.Reader
	w *bufio.Writer

	partial strings.Builder
	body    bytes.Buffer
}

func newConn(c net.Conn) *conn {
	return &conn{
		c: c,
		r: bufio.NewReader(c),
		w: bufio.NewWriter(c),
	}
}

// ReadFrame reads at most one bufio buffer at a time, so a line without a
// newline fails with ErrFrameTooLong once it passes MaxFrameLength.
func (t *conn) ReadFrame() (string, error) {
	for {
		chunk, err := t.r.ReadSlice('\n')
		t.partial.Write(chunk)
		if t.partial.Len() > MaxFrameLength {
			t.partial.Reset()
			return "", ErrFrameTooLong
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			return "", err
		}
		if frame := t.partial.String(); strings.HasSuffix(frame, FrameTerminator) {
			t.partial.Reset()
			return frame, nil
		}
	}
}

func (t *conn) ReadBody(n int) (string, error) {
	if n > MaxFrameLength {
		return "", ErrFrameTooLong
	}
	for t.body.Len() < n {
		chunk := make([]byte, n-t.body.Len())
		m, err := t.r.Read(chunk)
		t.body.Write(chunk[:m])
		if err != nil {
			return "", err
		}
	}
	body := t.body.String()
	t.body.Reset()
	return body, nil
}

func (t *conn) WriteFrame(text string) error {
	if _, err := t.w.WriteString(text + FrameTerminator); err != nil {
		return err
	}
	return t.w.Flush()
}

func (t *conn) SetReadDeadline(deadline time.Time) error {
	return t.c.SetReadDeadline(deadline)
}

func (t *conn) Close() error {
	return t.c.Close()
}
