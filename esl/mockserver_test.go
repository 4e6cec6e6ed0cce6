package esl

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	bannerFrame   = "Content-Type: auth/request\n\n"
	authOKFrame   = "Content-Type: command/reply\nReply-Text: +OK accepted\n\n"
	authFailFrame = "Content-Type: command/reply\nReply-Text: -ERR invalid\n\n"
	eventOKFrame  = "Content-Type: command/reply\nReply-Text: +OK event listener enabled json\n\n"
)

// mockServer is a minimal event socket listening on 127.0.0.1. It greets each
// connection with banner and answers every command frame with handler's
// result (nothing when it returns "").
type mockServer struct {
	listener net.Listener
	banner   string
	handler  func(cmd string) string

	mu       sync.Mutex
	conns    []net.Conn
	received []string
	notify   chan struct{}

	wg sync.WaitGroup
}

func startMockServer(t *testing.T, banner string, handler func(cmd string) string) *mockServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	if handler == nil {
		handler = defaultMockHandler
	}

	ms := &mockServer{
		listener: listener,
		banner:   banner,
		handler:  handler,
		notify:   make(chan struct{}, 64),
	}

	ms.wg.Add(1)
	go ms.acceptLoop()

	t.Cleanup(ms.stop)
	return ms
}

// defaultMockHandler accepts any auth and subscription.
func defaultMockHandler(cmd string) string {
	switch {
	case strings.HasPrefix(cmd, "auth "):
		return authOKFrame
	case strings.HasPrefix(cmd, "event json"):
		return eventOKFrame
	default:
		return ""
	}
}

func (ms *mockServer) port() int {
	return ms.listener.Addr().(*net.TCPAddr).Port
}

func (ms *mockServer) session(opts ...Option) *Session {
	opts = append([]Option{WithRefreshInterval(0)}, opts...)
	return New("127.0.0.1", ms.port(), opts...)
}

func (ms *mockServer) acceptLoop() {
	defer ms.wg.Done()
	for {
		conn, err := ms.listener.Accept()
		if err != nil {
			return
		}
		ms.mu.Lock()
		ms.conns = append(ms.conns, conn)
		ms.mu.Unlock()

		ms.wg.Add(1)
		go ms.handleConnection(conn)
	}
}

func (ms *mockServer) handleConnection(conn net.Conn) {
	defer ms.wg.Done()

	if ms.banner != "" {
		io.WriteString(conn, ms.banner)
	}

	reader := bufio.NewReader(conn)
	var frame bytes.Buffer
	for {
		line, err := reader.ReadString('\n')
		frame.WriteString(line)
		if err != nil {
			return
		}
		if !strings.HasSuffix(frame.String(), FrameTerminator) {
			continue
		}
		cmd := strings.TrimSuffix(frame.String(), FrameTerminator)
		frame.Reset()

		ms.mu.Lock()
		ms.received = append(ms.received, cmd)
		ms.mu.Unlock()
		select {
		case ms.notify <- struct{}{}:
		default:
		}

		if resp := ms.handler(cmd); resp != "" {
			io.WriteString(conn, resp)
		}
	}
}

// push writes raw bytes to every open connection.
func (ms *mockServer) push(t *testing.T, data string) {
	t.Helper()
	ms.mu.Lock()
	conns := append([]net.Conn(nil), ms.conns...)
	ms.mu.Unlock()
	if len(conns) == 0 {
		t.Fatal("push: no client connected")
	}
	for _, c := range conns {
		if _, err := io.WriteString(c, data); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
}

// commands returns the command frames received so far, terminators stripped.
func (ms *mockServer) commands() []string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]string(nil), ms.received...)
}

// waitForCommand blocks until cmd has been received.
func (ms *mockServer) waitForCommand(t *testing.T, cmd string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		for _, c := range ms.commands() {
			if c == cmd {
				return
			}
		}
		select {
		case <-ms.notify:
		case <-deadline:
			t.Fatalf("command %q not received; got %q", cmd, ms.commands())
		}
	}
}

// dropClients closes every client connection, keeping the listener open.
func (ms *mockServer) dropClients() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, c := range ms.conns {
		c.Close()
	}
	ms.conns = nil
}

func (ms *mockServer) stop() {
	ms.listener.Close()
	ms.dropClients()
	ms.wg.Wait()
}

// initialized returns a session that completed Initialize against ms.
func initialized(t *testing.T, ms *mockServer, opts ...Option) *Session {
	t.Helper()
	sess := ms.session(opts...)
	if err := sess.Initialize(testContext(t)); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// receive waits for the next event on the stream.
func receive(t *testing.T, st *Stream) Event {
	t.Helper()
	select {
	case ev, ok := <-st.Events():
		if !ok {
			t.Fatalf("stream ended early: %v", st.Err())
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

// waitDone waits for the stream to end.
func waitDone(t *testing.T, st *Stream) {
	t.Helper()
	select {
	case <-st.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream to end")
	}
}
