package esl

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dialer opens the TCP connection for a session.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// Option configures a Session.
type Option func(*Session)

// WithPassword sets the password sent by Initialize. An empty password skips
// authentication.
func WithPassword(password string) Option {
	return func(s *Session) {
		s.password = password
	}
}

// WithEvents sets the event names Initialize subscribes to. No names means
// all events.
func WithEvents(names ...string) Option {
	return func(s *Session) {
		s.events = append([]string(nil), names...)
	}
}

// WithCallbacks registers initial callbacks. See Registry.InitializeFrom.
func WithCallbacks(callbacks map[string]Callbacks) Option {
	return func(s *Session) {
		s.registry.InitializeFrom(callbacks)
	}
}

// WithRefreshInterval sets the pause after each dispatched frame. Zero or a
// negative value disables pacing.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Session) {
		s.refresh = d
	}
}

// WithDialTimeout bounds establishing the TCP connection.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.dialTimeout = d
	}
}

// WithDialer replaces the TCP dialer.
func WithDialer(d Dialer) Option {
	return func(s *Session) {
		s.dial = d
	}
}

// WithLogger sets the session logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithDecoder replaces the Event decoder.
func WithDecoder(d Decoder) Option {
	return func(s *Session) {
		if d != nil {
			s.decoder = d
		}
	}
}

// WithReplyHandler receives non-event frames read by the dispatch loop, such
// as api responses and command replies.
func WithReplyHandler(h ReplyHandler) Option {
	return func(s *Session) {
		s.onReply = h
	}
}

// Session is a connection to one event socket.
//
// The handshake methods (Connect, Authenticate, Subscribe) read from the
// transport and must not run while a Stream is active. Writes are serialized
// and may come from any goroutine.
type Session struct {
	host        string
	port        int
	password    string
	events      []string
	refresh     time.Duration
	dialTimeout time.Duration
	dial        Dialer
	logger      *zap.Logger
	metrics     *Metrics
	decoder     Decoder
	onReply     ReplyHandler
	registry    *Registry

	mu         sync.Mutex
	state      State
	transport  Transport
	streaming  bool
	subscribed []string

	// Header frame whose body has not been read yet. Owned by the reader.
	pending *Reply

	writeMu sync.Mutex
}

// New creates a session for host:port. A port of 0 selects DefaultPort.
func New(host string, port int, opts ...Option) *Session {
	if port == 0 {
		port = DefaultPort
	}
	s := &Session{
		host:        host,
		port:        port,
		refresh:     DefaultRefreshInterval,
		dialTimeout: DefaultDialTimeout,
		logger:      zap.NewNop(),
		decoder:     DecodeEvent,
		registry:    NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dial == nil {
		d := &net.Dialer{}
		s.dial = d.DialContext
	}
	s.logger = s.logger.With(zap.String("addr", s.Addr()))
	return s
}

// Addr returns the host:port the session dials.
func (s *Session) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Registry returns the session's callback registry.
func (s *Session) Registry() *Registry {
	return s.registry
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribed returns the event names of the last successful Subscribe. It is
// nil before any subscription and empty (not nil) for all events.
func (s *Session) Subscribed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribed == nil {
		return nil
	}
	return append([]string{}, s.subscribed...)
}

// Initialize connects, authenticates when a password is configured, and
// subscribes, stopping at the first failure.
func (s *Session) Initialize(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	if s.password != "" {
		if err := s.Authenticate(ctx, s.password); err != nil {
			return err
		}
	}
	return s.Subscribe(ctx, s.events)
}

// Connect dials the server and waits for the auth/request banner. On any
// failure the connection is closed and the session stays disconnected. It
// returns ErrStreamActive until a previous Stream has fully ended.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return ErrStreamActive
	}
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.mu.Unlock()

	s.logger.Debug("connecting")

	dialCtx := ctx
	if s.dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.dialTimeout)
		defer cancel()
	}
	c, err := s.dial(dialCtx, "tcp", s.Addr())
	if err != nil {
		return NewConnectionError("failed to connect", err)
	}

	t := newConn(c)
	frame, err := s.readFrame(ctx, t)
	if err != nil {
		t.Close()
		return NewConnectionError("failed to read banner", err)
	}
	s.logger.Debug("connection response", zap.String("frame", frame))

	if !strings.Contains(frame, AuthRequestBanner) {
		t.Close()
		s.logger.Error("unexpected banner", zap.String("frame", frame))
		return NewConnectionError("unexpected banner: "+strings.TrimSpace(frame), nil)
	}

	s.mu.Lock()
	s.transport = t
	s.state = StateConnected
	s.subscribed = nil
	s.pending = nil
	s.mu.Unlock()
	s.metrics.setState(StateConnected)

	s.logger.Info("connected")
	return nil
}

// Authenticate sends "auth <password>" and requires +OK in the reply. On
// rejection the session stays connected.
func (s *Session) Authenticate(ctx context.Context, password string) error {
	t, err := s.handshakeTransport()
	if err != nil {
		return err
	}

	if err := s.write(t, NewAuthCommand(password)); err != nil {
		return err
	}
	frame, err := s.readFrame(ctx, t)
	if err != nil {
		return s.readError(ctx, t, err)
	}
	s.logger.Debug("authentication response", zap.String("frame", frame))

	if !strings.Contains(frame, OKMarker) {
		reply := ParseReply(frame)
		s.logger.Error("authentication failed", zap.String("reply", reply.Text()))
		return &AuthenticationError{Reply: reply.Text()}
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	s.mu.Unlock()
	s.metrics.setState(StateAuthenticated)

	s.logger.Info("authenticated")
	return nil
}

// Subscribe sends "event json ..." for the names (all events when empty) and
// reads one acknowledgement. A -ERR acknowledgement returns a *CommandError;
// any other reply is accepted.
func (s *Session) Subscribe(ctx context.Context, names []string) error {
	t, err := s.handshakeTransport()
	if err != nil {
		return err
	}

	cmd := NewEventCommand(names...)
	if err := s.write(t, cmd); err != nil {
		return err
	}
	frame, err := s.readFrame(ctx, t)
	if err != nil {
		return s.readError(ctx, t, err)
	}
	s.logger.Debug("subscribe response", zap.String("frame", frame))

	if strings.Contains(frame, ErrMarker) {
		reply := ParseReply(frame)
		return &CommandError{Command: cmd.Format(), Reply: reply.Text()}
	}

	s.mu.Lock()
	s.subscribed = append([]string{}, names...)
	s.mu.Unlock()

	s.logger.Info("subscribed", zap.Strings("events", names))
	return nil
}

// SendCommand writes text plus the frame terminator. It does not read a
// reply; replies reach the ReplyHandler of a running Stream.
func (s *Session) SendCommand(text string) error {
	return s.Send(NewRawCommand(text))
}

// Send writes a command. It does not read a reply.
func (s *Session) Send(cmd Command) error {
	t, err := s.connectedTransport()
	if err != nil {
		return err
	}
	return s.write(t, cmd)
}

// API sends "api <command>".
func (s *Session) API(command string) error {
	return s.Send(NewAPICommand(command))
}

// BgAPI sends "bgapi <command>". The result arrives as a BACKGROUND_JOB event.
func (s *Session) BgAPI(command string) error {
	return s.Send(NewBgAPICommand(command))
}

// Exit asks the server to close the connection.
func (s *Session) Exit() error {
	return s.Send(NewExitCommand())
}

// Close closes the transport. A running Stream ends with a TransportError.
func (s *Session) Close() error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return nil
	}
	return s.closeTransport(t)
}

// closeTransport closes t and, if it is still the session's transport,
// marks the session disconnected. A transport replaced by a later Connect
// leaves the session alone.
func (s *Session) closeTransport(t Transport) error {
	s.mu.Lock()
	current := s.transport == t
	if current {
		s.transport = nil
		s.state = StateDisconnected
		s.subscribed = nil
	}
	s.mu.Unlock()

	if current {
		s.metrics.setState(StateDisconnected)
		s.logger.Info("closing connection")
	}
	return t.Close()
}

func (s *Session) connectedTransport() (Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected || s.transport == nil {
		return nil, ErrNotConnected
	}
	return s.transport, nil
}

// handshakeTransport is connectedTransport for operations that read.
func (s *Session) handshakeTransport() (Transport, error) {
	t, err := s.connectedTransport()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming {
		return nil, ErrStreamActive
	}
	return t, nil
}

func (s *Session) write(t Transport, cmd Command) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.logger.Debug("sending command", zap.Stringer("command", cmd))
	if err := t.WriteFrame(cmd.Format()); err != nil {
		return &TransportError{Op: "write", Cause: err}
	}
	return nil
}

// readFrame reads one frame, giving up when ctx is done.
func (s *Session) readFrame(ctx context.Context, t Transport) (string, error) {
	var frame string
	err := s.interruptible(ctx, t, func() error {
		var err error
		frame, err = t.ReadFrame()
		return err
	})
	return frame, err
}

// readBody reads n body bytes, giving up when ctx is done.
func (s *Session) readBody(ctx context.Context, t Transport, n int) (string, error) {
	var body string
	err := s.interruptible(ctx, t, func() error {
		var err error
		body, err = t.ReadBody(n)
		return err
	})
	return body, err
}

// interruptible runs a blocking read that an expired read deadline unblocks
// once ctx is done. Reads carry no deadline otherwise.
func (s *Session) interruptible(ctx context.Context, t Transport, read func() error) error {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = t.SetReadDeadline(time.Now())
		close(fired)
	})
	err := read()
	if !stop() {
		<-fired
		_ = t.SetReadDeadline(time.Time{})
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

// readError classifies a failed read on t. Context errors pass through;
// anything else is fatal to t.
func (s *Session) readError(ctx context.Context, t Transport, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr {
		return err
	}
	s.logger.Warn("read failed", zap.Error(err))
	s.closeTransport(t)
	return &TransportError{Op: "read", Cause: err}
}
