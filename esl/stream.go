package esl

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Stream is a running dispatch loop. Events are delivered on Events until the
// transport fails, the context is cancelled or Close is called. A stream
// cannot be restarted; start a new one on the same session instead.
type Stream struct {
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc
	closed atomic.Bool
	err    error
}

// Events returns the channel of dispatched events. It is closed when the
// loop ends.
func (st *Stream) Events() <-chan Event {
	return st.events
}

// Done is closed when the loop has ended.
func (st *Stream) Done() <-chan struct{} {
	return st.done
}

// Err returns why the loop ended: a *TransportError, the context's error, or
// nil after Close. It returns nil while the loop runs.
func (st *Stream) Err() error {
	select {
	case <-st.done:
	default:
		return nil
	}
	if st.closed.Load() && errors.Is(st.err, context.Canceled) {
		return nil
	}
	return st.err
}

// Close stops the loop and waits for it to end. The session stays connected
// and a partially read frame is kept for the next stream.
func (st *Stream) Close() error {
	st.closed.Store(true)
	st.cancel()
	<-st.done
	return nil
}

// Stream starts the dispatch loop in a goroutine. Only one stream may run per
// session.
func (s *Session) Stream(ctx context.Context) (*Stream, error) {
	s.mu.Lock()
	if s.state == StateDisconnected || s.transport == nil {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	if s.streaming {
		s.mu.Unlock()
		return nil, ErrStreamActive
	}
	s.streaming = true
	t := s.transport
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	st := &Stream{
		events: make(chan Event),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.loop(ctx, t, st)
	return st, nil
}

// Run initializes the session and drains a stream until it ends. Callbacks
// still run for every event.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Initialize(ctx); err != nil {
		return err
	}
	st, err := s.Stream(ctx)
	if err != nil {
		return err
	}
	for range st.Events() {
	}
	return st.Err()
}

func (s *Session) loop(ctx context.Context, t Transport, st *Stream) {
	defer func() {
		st.cancel()
		s.mu.Lock()
		s.streaming = false
		s.mu.Unlock()
		close(st.events)
		close(st.done)
	}()

	s.logger.Debug("dispatch loop started")
	for {
		ev, ok, err := s.next(ctx, t)
		if err != nil {
			st.err = err
			s.logger.Debug("dispatch loop ended", zap.Error(err))
			return
		}
		if ok {
			select {
			case st.events <- ev:
			case <-ctx.Done():
				st.err = ctx.Err()
				return
			}
		}
		if err := s.pace(ctx); err != nil {
			st.err = err
			return
		}
	}
}

// next reads one frame and returns the event it carries, if any. Only read
// failures and cancellation are returned as errors.
func (s *Session) next(ctx context.Context, t Transport) (Event, bool, error) {
	if s.pending == nil {
		frame, err := s.readFrame(ctx, t)
		if err != nil {
			return Event{}, false, s.readError(ctx, t, err)
		}
		s.logger.Debug("frame received", zap.String("frame", frame))

		if looksLikeJSON(frame) {
			ev, ok := s.decodeJSON(frame, frame, 0)
			return ev, ok, nil
		}

		reply := ParseReply(frame)
		n, ok := reply.ContentLength()
		if !ok || n == 0 {
			s.handleReply(reply)
			return Event{}, false, nil
		}
		s.pending = &reply
	}

	n, _ := s.pending.ContentLength()
	body, err := s.readBody(ctx, t, n)
	if err != nil {
		return Event{}, false, s.readError(ctx, t, err)
	}
	reply := *s.pending
	s.pending = nil
	reply.Body = body

	if reply.ContentType() == ContentTypeEventJSON {
		ev, ok := s.decodeJSON(body, body, n)
		return ev, ok, nil
	}
	s.handleReply(reply)
	return Event{}, false, nil
}

// decodeJSON turns text holding a JSON object into a dispatched event.
// Malformed, empty and unnamed objects are logged and skipped.
func (s *Session) decodeJSON(text, body string, contentLength int) (Event, bool) {
	headers, err := extractHeaders(text)
	if err != nil {
		s.metrics.frame(frameMalformed)
		s.logger.Error("unable to parse message", zap.Error(err), zap.String("frame", text))
		return Event{}, false
	}
	if len(headers) == 0 {
		s.metrics.frame(frameSkipped)
		s.logger.Warn("no data found", zap.String("frame", text))
		return Event{}, false
	}

	ev := s.decoder(headers, body, contentLength)
	name := ev.Name()
	if name == "" {
		s.metrics.frame(frameMalformed)
		s.logger.Error("event without "+EventNameHeader, zap.String("frame", text))
		return Event{}, false
	}

	s.metrics.frame(frameEvent)
	s.metrics.event(name)
	s.logger.Debug("event", zap.String("event", name))

	for _, h := range s.registry.Lookup(name) {
		s.invoke(name, h, ev)
	}
	return ev, true
}

// invoke runs one callback, recovering and logging a panic so the loop keeps
// going.
func (s *Session) invoke(name string, h EventHandler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.panicked(name)
			s.logger.Error("panic in event callback",
				zap.String("event", name),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	h(ev)
}

func (s *Session) handleReply(reply Reply) {
	switch reply.ContentType() {
	case ContentTypeCommandReply, ContentTypeAPIResponse:
		s.metrics.frame(frameReply)
		s.logger.Debug("reply", zap.String("content_type", reply.ContentType()), zap.String("text", reply.Text()))
	case ContentTypeDisconnectNotice:
		s.metrics.frame(frameReply)
		s.logger.Warn("disconnect notice", zap.String("text", reply.Text()))
	default:
		s.metrics.frame(frameSkipped)
		s.logger.Warn("unexpected data", zap.String("frame", reply.Raw))
		return
	}

	if s.onReply == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in reply handler", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	s.onReply(reply)
}

func (s *Session) pace(ctx context.Context) error {
	if s.refresh <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.refresh)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
