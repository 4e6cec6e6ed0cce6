package esl

import (
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"
)

// pipe returns a Transport reading from one end of net.Pipe and the other end.
func pipe(t *testing.T) (*conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return newConn(client), server
}

// feed writes each chunk to w in order from a goroutine.
func feed(w io.Writer, chunks ...string) {
	go func() {
		for _, c := range chunks {
			if _, err := io.WriteString(w, c); err != nil {
				return
			}
		}
	}()
}

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
	}{
		{
			name:   "single frame",
			chunks: []string{"Content-Type: auth/request\n\n"},
			want:   []string{"Content-Type: auth/request\n\n"},
		},
		{
			name:   "split across writes",
			chunks: []string{`{"Event-Na`, `me":"API"}`, "\n", "\n"},
			want:   []string{`{"Event-Name":"API"}` + "\n\n"},
		},
		{
			name:   "two frames in one write",
			chunks: []string{"+OK\n\n-ERR\n\n"},
			want:   []string{"+OK\n\n", "-ERR\n\n"},
		},
		{
			name:   "multi-line frame",
			chunks: []string{"A: 1\nB: 2\n\n"},
			want:   []string{"A: 1\nB: 2\n\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, server := pipe(t)
			feed(server, tt.chunks...)
			for _, want := range tt.want {
				got, err := tr.ReadFrame()
				if err != nil {
					t.Fatalf("ReadFrame() error = %v", err)
				}
				if got != want {
					t.Errorf("ReadFrame() = %q, want %q", got, want)
				}
			}
		})
	}
}

func TestReadFrameKeepsPartialAcrossDeadline(t *testing.T) {
	tr, server := pipe(t)
	feed(server, "Content-Type: command/reply\n")

	tr.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, err := tr.ReadFrame(); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("ReadFrame() error = %v, want deadline exceeded", err)
	}

	tr.SetReadDeadline(time.Time{})
	feed(server, "Reply-Text: +OK\n\n")
	got, err := tr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if want := "Content-Type: command/reply\nReply-Text: +OK\n\n"; got != want {
		t.Errorf("ReadFrame() = %q, want %q", got, want)
	}
}

func TestReadFrameEOF(t *testing.T) {
	tr, server := pipe(t)
	feed(server, "half a frame\n")
	go func() {
		time.Sleep(20 * time.Millisecond)
		server.Close()
	}()

	if _, err := tr.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame() error = %v, want io.EOF", err)
	}
}

func TestReadFrameTooLong(t *testing.T) {
	tr, server := pipe(t)
	feed(server, strings.Repeat("x", MaxFrameLength)+"\n")

	if _, err := tr.ReadFrame(); !errors.Is(err, ErrFrameTooLong) {
		t.Errorf("ReadFrame() error = %v, want ErrFrameTooLong", err)
	}
}

func TestReadFrameTooLongWithoutNewline(t *testing.T) {
	tr, server := pipe(t)
	feed(server, strings.Repeat("x", MaxFrameLength), strings.Repeat("y", 64*1024))

	if _, err := tr.ReadFrame(); !errors.Is(err, ErrFrameTooLong) {
		t.Fatalf("ReadFrame() error = %v, want ErrFrameTooLong", err)
	}
	if tr.partial.Len() != 0 {
		t.Errorf("partial frame kept %d bytes after overflow", tr.partial.Len())
	}
}

func TestReadBody(t *testing.T) {
	tr, server := pipe(t)
	feed(server, "Content-Length: 11\n\n", "hello", " world", "+OK\n\n")

	if _, err := tr.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	body, err := tr.ReadBody(11)
	if err != nil {
		t.Fatalf("ReadBody() error = %v", err)
	}
	if body != "hello world" {
		t.Errorf("ReadBody() = %q", body)
	}
	next, err := tr.ReadFrame()
	if err != nil || next != "+OK\n\n" {
		t.Errorf("ReadFrame() after body = %q, %v", next, err)
	}
}

func TestReadBodyKeepsPartialAcrossDeadline(t *testing.T) {
	tr, server := pipe(t)
	feed(server, "abc")

	tr.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, err := tr.ReadBody(6); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("ReadBody() error = %v, want deadline exceeded", err)
	}

	tr.SetReadDeadline(time.Time{})
	feed(server, "def")
	body, err := tr.ReadBody(6)
	if err != nil {
		t.Fatalf("ReadBody() error = %v", err)
	}
	if body != "abcdef" {
		t.Errorf("ReadBody() = %q, want abcdef", body)
	}
}

func TestReadBodyTooLong(t *testing.T) {
	tr, _ := pipe(t)
	if _, err := tr.ReadBody(MaxFrameLength + 1); !errors.Is(err, ErrFrameTooLong) {
		t.Errorf("ReadBody() error = %v, want ErrFrameTooLong", err)
	}
}

func TestWriteFrame(t *testing.T) {
	tr, server := pipe(t)

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := io.ReadAtLeast(server, buf, len("api status\n\n"))
		got <- string(buf[:n])
	}()

	if err := tr.WriteFrame("api status"); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	select {
	case s := <-got:
		if s != "api status\n\n" {
			t.Errorf("wrote %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out reading written frame")
	}
}
