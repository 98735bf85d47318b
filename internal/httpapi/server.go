package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/valleyboyzz0024-del/ara-voice/internal/archive"
	"github.com/valleyboyzz0024-del/ara-voice/internal/command"
	"github.com/valleyboyzz0024-del/ara-voice/internal/config"
	"github.com/valleyboyzz0024-del/ara-voice/internal/observability"
	"github.com/valleyboyzz0024-del/ara-voice/internal/session"
)

// DefaultSessionID is the shared session used when a caller supplies none.
const DefaultSessionID = "default"

type Orchestrator interface {
	HandleStructured(ctx context.Context, sessionID, transcript string) (command.Result, error)
	HandleFreeform(ctx context.Context, sessionID, text string) (command.Result, error)
	Collections(ctx context.Context) ([]string, error)
}

type Server struct {
	cfg          config.Config
	sessions     *session.Store
	orchestrator Orchestrator
	archive      archive.Store
	oracleName   string
	metrics      *observability.Metrics
	log          *log.Logger
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Store, orchestrator Orchestrator, store archive.Store, oracleName string, metrics *observability.Metrics, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		cfg:          cfg,
		sessions:     sessions,
		orchestrator: orchestrator,
		archive:      store,
		oracleName:   oracleName,
		metrics:      metrics,
		log:          logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other sites cannot drive a user's session
				// if the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/command", s.handleFreeform)
	r.Post("/v1/command/structured", s.handleStructured)
	r.Get("/v1/command/ws", s.handleCommandWS)
	r.Get("/v1/collections", s.handleCollections)
	r.Get("/v1/sessions/{id}/history", s.handleSessionHistory)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"archive_mode": s.archiveMode(),
		"oracle":       s.oracleName,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"archive_mode": s.archiveMode(),
		"oracle":       s.oracleName,
		"sessions":     s.sessions.Count(),
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, observability.StageSnapshot{})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.SnapshotStages())
}

type freeformRequest struct {
	Command   string `json:"command"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleFreeform(w http.ResponseWriter, r *http.Request) {
	var req freeformRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		respondError(w, http.StatusBadRequest, "command is required", nil)
		return
	}
	sessionID := orDefault(req.SessionID)

	text, err := s.authorize(r, sessionID, req.Command)
	if err != nil {
		s.respondCommandError(w, err)
		return
	}

	res, err := s.orchestrator.HandleFreeform(r.Context(), sessionID, text)
	s.observeSessions()
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	respondResult(w, res)
}

type structuredRequest struct {
	Transcript string  `json:"transcript"`
	Key        string  `json:"key"`
	Tab        string  `json:"tab"`
	Item       string  `json:"item"`
	Qty        float64 `json:"qty"`
	Price      float64 `json:"price"`
	Status     string  `json:"status"`
	SessionID  string  `json:"sessionId"`
}

func (s *Server) handleStructured(w http.ResponseWriter, r *http.Request) {
	var req structuredRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	sessionID := orDefault(req.SessionID)

	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" && req.Tab != "" {
		// Field form: synthesize the grammar the parser expects.
		transcript = strings.Join([]string{
			s.cfg.SecretPhrase, req.Tab, req.Item,
			strconv.FormatFloat(req.Qty, 'f', -1, 64),
			"at",
			strconv.FormatFloat(req.Price, 'f', -1, 64),
			req.Status,
		}, " ")
	}
	if transcript == "" {
		respondError(w, http.StatusBadRequest, "transcript or structured fields are required", nil)
		return
	}

	text := transcript
	if s.keyMatches(req.Key) {
		s.sessions.SetAuth(sessionID, map[string]string{"method": "key"}, "")
	} else {
		var err error
		text, err = s.authorize(r, sessionID, transcript)
		if err != nil {
			s.respondCommandError(w, err)
			return
		}
	}

	res, err := s.orchestrator.HandleStructured(r.Context(), sessionID, text)
	s.observeSessions()
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	respondResult(w, res)
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authorize(r, orDefault(r.URL.Query().Get("sessionId")), ""); err != nil {
		s.respondCommandError(w, err)
		return
	}
	names, err := s.orchestrator.Collections(r.Context())
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, apiResponse{
		Status: "success",
		Data:   map[string]any{"collections": names},
	})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing session id", nil)
		return
	}
	if _, err := s.authorize(r, id, ""); err != nil {
		s.respondCommandError(w, err)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	records, err := s.archive.RecentBySession(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	respondJSON(w, http.StatusOK, apiResponse{
		Status: "success",
		Data:   map[string]any{"session_id": id, "history": records},
	})
}

func (s *Server) archiveMode() string {
	if s.archive == nil {
		return "disabled"
	}
	return s.archive.Mode()
}

func (s *Server) observeSessions() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.sessions.Count()))
	}
}

type apiResponse struct {
	Status  string   `json:"status"`
	Type    string   `json:"type,omitempty"`
	Data    any      `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

func respondResult(w http.ResponseWriter, res command.Result) {
	respondJSON(w, http.StatusOK, apiResponse{
		Status: "success",
		Type:   res.Type,
		Data:   res,
	})
}

func (s *Server) respondCommandError(w http.ResponseWriter, err error) {
	status, message, details := classifyError(err)
	respondJSON(w, status, apiResponse{
		Status:  "error",
		Message: message,
		Details: details,
	})
}

func classifyError(err error) (int, string, []string) {
	var cerr *command.Error
	if !errors.As(err, &cerr) {
		return http.StatusInternalServerError, err.Error(), nil
	}
	switch cerr.Kind {
	case command.KindAuth:
		return http.StatusUnauthorized, cerr.Message, cerr.Details
	case command.KindValidation:
		return http.StatusUnprocessableEntity, cerr.Message, cerr.Details
	case command.KindFormat, command.KindAIParse, command.KindAmbiguous:
		return http.StatusUnprocessableEntity, cerr.Message, cerr.Details
	case command.KindGateway:
		return http.StatusBadGateway, cerr.Message, cerr.Details
	default:
		return http.StatusInternalServerError, cerr.Message, cerr.Details
	}
}

func orDefault(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return DefaultSessionID
	}
	return sessionID
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string, details []string) {
	respondJSON(w, status, apiResponse{Status: "error", Message: message, Details: details})
}
