package relay

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lurimax-north/freeswitch-esl/esl"
)

// Health is the /healthz response body.
type Health struct {
	State      string   `json:"state"`
	Addr       string   `json:"addr"`
	Subscribed []string `json:"subscribed"`
	Clients    int      `json:"clients"`
}

// Server exposes a session over HTTP.
type Server struct {
	session     *esl.Session
	broadcaster *Broadcaster
	gatherer    prometheus.Gatherer
	eventsPath  string
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithEventsPath moves the websocket endpoint (default "/events").
func WithEventsPath(path string) ServerOption {
	return func(s *Server) {
		if path != "" {
			s.eventsPath = path
		}
	}
}

// WithServerLogger sets the logger for upgrade failures. Nil is ignored.
func WithServerLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer serves sess and the clients of b. Metrics come from the default
// Prometheus gatherer unless WithGatherer is given.
func NewServer(sess *esl.Session, b *Broadcaster, opts ...ServerOption) *Server {
	s := &Server{
		session:     sess,
		broadcaster: b,
		gatherer:    prometheus.DefaultGatherer,
		eventsPath:  "/events",
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the HTTP handler:
//
//	GET /events    websocket event feed; ?events=A,B limits it by name
//	GET /healthz   session state, 503 when disconnected
//	GET /metrics   Prometheus metrics
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(s.eventsPath, s.handleEvents)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	var events []string
	if q := r.URL.Query().Get("events"); q != "" {
		for _, name := range strings.Split(q, ",") {
			if name = strings.TrimSpace(name); name != "" {
				events = append(events, name)
			}
		}
	}
	c := s.broadcaster.AddClient(conn, events)

	// Reads only detect the close; clients have nothing to say.
	go func() {
		defer s.broadcaster.RemoveClient(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.session.State()
	health := Health{
		State:      state.String(),
		Addr:       s.session.Addr(),
		Subscribed: s.session.Subscribed(),
		Clients:    s.broadcaster.ClientCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	if state == esl.StateDisconnected {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}
