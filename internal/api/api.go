package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/telkomfield/visitbot/internal/gateway"
	"github.com/telkomfield/visitbot/internal/messaging"
	"github.com/telkomfield/visitbot/internal/models"
	"github.com/telkomfield/visitbot/internal/session"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// defaultSubmissionLimit caps how many submissions a list call returns
// when the client does not ask for a specific limit.
const defaultSubmissionLimit = 50

// SubmissionLister is the read side of a submission gateway.
type SubmissionLister interface {
	List(ctx context.Context, limit int) ([]gateway.Submission, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
	// WebhookPath and Webhook mount a transport callback (e.g. the
	// Twilio inbound message webhook) on the same listener.
	WebhookPath string
	Webhook     http.HandlerFunc
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithWebhook mounts an extra handler at the given path.
func WithWebhook(path string, h http.HandlerFunc) Option {
	return func(o *Opts) {
		o.WebhookPath = path
		o.Webhook = h
	}
}

// Server serves the operational HTTP endpoints.
type Server struct {
	sessions    session.Store
	submissions SubmissionLister
	handler     messaging.Handler
	httpServer  *http.Server
}

// NewServer wires the API server to the session store, submission
// gateway, and form handler.
func NewServer(sessions session.Store, submissions SubmissionLister, handler messaging.Handler, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		sessions:    sessions,
		submissions: submissions,
		handler:     handler,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/sessions/", s.sessionHandler)
	mux.HandleFunc("/api/submissions", s.submissionsHandler)
	mux.HandleFunc("/api/events", s.eventsHandler)
	if cfg.Webhook != nil {
		mux.HandleFunc(cfg.WebhookPath, cfg.Webhook)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the underlying HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("API server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server failed", "error", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler reports liveness plus the active session count as a
// basic health indicator.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if count, err := s.sessions.ActiveCount(ctx); err != nil {
		slog.Warn("Health check: failed to count active sessions", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to fetch session metrics"
		statusCode = http.StatusServiceUnavailable
	} else {
		healthData["active_sessions"] = count
	}

	writeJSONResponse(w, statusCode, healthData)
}

// sessionView is the externally visible shape of a session. The stored
// evidence photo is replaced by its size so the payload stays small.
type sessionView struct {
	UserID     string            `json:"user_id"`
	State      models.State      `json:"state"`
	Answered   int               `json:"answered"`
	Values     map[string]string `json:"values"`
	PhotoBytes int               `json:"photo_bytes,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func newSessionView(sess *session.Session) sessionView {
	view := sessionView{
		UserID:    sess.UserID,
		State:     sess.State,
		Answered:  sess.Progress(),
		Values:    make(map[string]string, len(sess.Values)),
		UpdatedAt: sess.UpdatedAt,
	}
	for k, v := range sess.Values {
		if k == models.FieldEvidencePhoto {
			view.PhotoBytes = len(v)
			continue
		}
		view.Values[k] = v
	}
	return view
}

// sessionHandler serves GET /api/sessions/{id}.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if userID == "" || strings.Contains(userID, "/") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing or invalid session id"))
		return
	}

	sess, err := s.sessions.GetOrCreate(r.Context(), userID)
	if err != nil {
		slog.Error("Server.sessionHandler: failed to load session", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(newSessionView(sess)))
}

// submissionsHandler serves GET /api/submissions?limit=N.
func (s *Server) submissionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := defaultSubmissionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(fmt.Sprintf("Invalid limit %q", raw)))
			return
		}
		limit = n
	}

	subs, err := s.submissions.List(r.Context(), limit)
	if err != nil {
		slog.Error("Server.submissionsHandler: failed to list submissions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list submissions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(subs))
}

// eventsHandler serves POST /api/events: it injects one event into the
// form handler and returns the prompts the user would have received.
// Useful for manual testing and for channel integrations that prefer a
// synchronous request/response shape.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var ev models.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		slog.Warn("Server.eventsHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := ev.Validate(); err != nil {
		slog.Warn("Server.eventsHandler: invalid event", "error", err, "userID", ev.UserID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	prompts, err := s.handler.Handle(r.Context(), ev)
	if err != nil {
		slog.Error("Server.eventsHandler: handler failed", "error", err, "userID", ev.UserID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process event"))
		return
	}

	slog.Info("Server.eventsHandler: event processed", "userID", ev.UserID, "kind", ev.Kind, "prompts", len(prompts))
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{"prompts": prompts}))
}
