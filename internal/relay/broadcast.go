// Package relay fans session events out to websocket clients.
package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lurimax-north/freeswitch-esl/esl"
)

const defaultSendBuffer = 64

// Message is the JSON document sent to clients for each event.
type Message struct {
	ID         string            `json:"id"`
	Event      string            `json:"event"`
	Headers    map[string]string `json:"headers"`
	ReceivedAt time.Time         `json:"received_at"`
}

// NewMessage wraps ev with a fresh id and the receive time in UTC.
func NewMessage(ev esl.Event, at time.Time) Message {
	return Message{
		ID:         uuid.NewString(),
		Event:      ev.Name(),
		Headers:    ev.Headers,
		ReceivedAt: at.UTC(),
	}
}

// Client is one connected websocket. Its id is a random uuid.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	// events limits delivery to these names. Empty means every event.
	events map[string]bool
}

// ID returns the client's uuid.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) wants(name string) bool {
	return len(c.events) == 0 || c.events[name]
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Broadcaster holds the connected clients. A client whose send buffer is
// full is disconnected.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	bufferSize int
	logger     *zap.Logger
	now        func() time.Time
}

// NewBroadcaster creates a Broadcaster with no clients. A nil logger
// discards logs.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		clients:    make(map[*Client]bool),
		bufferSize: defaultSendBuffer,
		logger:     logger,
		now:        time.Now,
	}
}

// AddClient registers conn and starts its write pump. events filters by
// event name; nil delivers everything.
func (b *Broadcaster) AddClient(conn *websocket.Conn, events []string) *Client {
	c := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, b.bufferSize),
	}
	if len(events) > 0 {
		c.events = make(map[string]bool, len(events))
		for _, name := range events {
			c.events[name] = true
		}
	}
	go c.writePump()

	b.add(c)
	return c
}

func (b *Broadcaster) add(c *Client) {
	b.mu.Lock()
	b.clients[c] = true
	n := len(b.clients)
	b.mu.Unlock()
	b.logger.Info("relay client connected", zap.String("client", c.id), zap.Int("clients", n))
}

// RemoveClient unregisters c and stops its write pump, which closes the
// connection. Removing a client twice is a no-op.
func (b *Broadcaster) RemoveClient(c *Client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	if ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
	if ok {
		b.logger.Info("relay client disconnected", zap.String("client", c.id))
	}
}

// Publish sends ev to every client that wants it.
func (b *Broadcaster) Publish(ev esl.Event) {
	msg := NewMessage(ev, b.now())
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("relay marshal failed", zap.String("event", msg.Event), zap.Error(err))
		return
	}

	// Send channels are only closed under the write lock.
	var slow []*Client
	b.mu.RLock()
	for c := range b.clients {
		if !c.wants(msg.Event) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Warn("relay client too slow, disconnecting", zap.String("client", c.id))
		b.RemoveClient(c)
	}
}

// Forward publishes every event of st until the stream ends and returns the
// stream's error.
func (b *Broadcaster) Forward(st *esl.Stream) error {
	for ev := range st.Events() {
		b.Publish(ev)
	}
	return st.Err()
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}
