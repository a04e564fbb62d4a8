// Package gateway is the HTTP channel-adapter boundary: it turns inbound
// messages into orchestrator runs and exposes tasks, traces and live events.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/claybowl/taygency/internal/agent"
	"github.com/claybowl/taygency/internal/events"
	"github.com/claybowl/taygency/internal/gateway/ws"
	"github.com/claybowl/taygency/internal/tasks"
	"github.com/claybowl/taygency/internal/trace"
)

// Runner runs one inbound message.
type Runner interface {
	Run(ctx context.Context, req agent.Request) (*agent.Response, error)
}

// Server is the Taygency gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	runner     Runner
	tasks      *tasks.Store
	traces     *trace.Store
}

// NewServer creates a new gateway server. traces may be nil when trace
// persistence is disabled.
func NewServer(bus *events.Bus, runner Runner, taskStore *tasks.Store, traces *trace.Store, host string, port int) *Server {
	hub := ws.NewHub(bus, runner)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	s := &Server{
		hub:    hub,
		bus:    bus,
		runner: runner,
		tasks:  taskStore,
		traces: traces,
	}

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ws", hub.ServeWS)
	r.Get("/api/events", s.handleEvents)

	r.Post("/api/message", s.handleMessage)
	r.Get("/api/tasks", s.handleTasks)
	r.Get("/api/tasks/{id}", s.handleTask)
	r.Get("/api/traces/{id}", s.handleTrace)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Addr is the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Clients is the number of connected websocket clients.
func (s *Server) Clients() int { return s.hub.Clients() }

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("Taygency gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": s.hub.Clients()})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	type eventJSON struct {
		ID        string             `json:"id"`
		TraceID   string             `json:"trace_id,omitempty"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}

	history := s.bus.History(limit)
	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:        e.ID,
			TraceID:   e.TraceID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// handleMessage runs one message. A failed run still answers with the
// response envelope so the channel can apologise; the status tells
// upstream failures (502) apart from internal ones (500).
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := s.runner.Run(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, agent.ErrUpstream) {
			status = http.StatusBadGateway
		}
		slog.Error("run failed", "channel", req.Channel, "error", err,
			"request_id", middleware.GetReqID(r.Context()))
		if resp == nil {
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
