package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/caiga/companion/internal/engine"
	"github.com/caiga/companion/internal/signals"
)

// Engine is the decision engine surface exposed over HTTP.
type Engine interface {
	Status() engine.Status
	Preview(ctx context.Context) (engine.Preview, error)
	Force(ctx context.Context, req engine.ForceRequest) (engine.DecisionRecord, error)
	Feedback(req engine.FeedbackRequest) error
}

// #region server

// Server routes the companion's HTTP API.
type Server struct {
	engine Engine
	hub    *Hub
	now    func() time.Time
	mux    *http.ServeMux
}

func NewServer(eng Engine, hub *Hub) *Server {
	s := &Server{engine: eng, hub: hub, now: time.Now, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /tip", s.handlePreview)
	s.mux.HandleFunc("POST /tip/force", s.handleForce)
	s.mux.HandleFunc("POST /feedback", s.handleFeedback)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if hub != nil {
		s.mux.Handle("GET /ws/decisions", hub)
	}
	return s
}

// Handler returns the traced root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "companion",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// #endregion server

// #region handlers

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Preview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleForce(w http.ResponseWriter, r *http.Request) {
	var req engine.ForceRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	rec, err := s.engine.Force(r.Context(), req)
	if errors.Is(err, engine.ErrTransientIO) {
		log.Printf("[API] force: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to post"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": rec.ChosenText, "id": rec.ID})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req engine.FeedbackRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	if err := s.engine.Feedback(req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": signals.EpochSeconds(s.now())})
}

// #endregion handlers

// #region helpers

// decode reads a JSON body. An empty body decodes to the zero request, leaving validation
// to the engine.
func decode(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, engine.ErrNoSnapshot):
		status, msg = http.StatusBadRequest, "no state yet"
	case errors.Is(err, engine.ErrValidation):
		status, msg = http.StatusBadRequest, strings.TrimPrefix(msg, engine.ErrValidation.Error()+": ")
	case errors.Is(err, engine.ErrCooldownActive):
		status, msg = http.StatusTooManyRequests, "cooldown active"
	case errors.Is(err, engine.ErrTransientIO):
		msg = "temporarily unavailable"
	}
	if status >= 500 {
		log.Printf("[API] %v", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

// #endregion helpers
