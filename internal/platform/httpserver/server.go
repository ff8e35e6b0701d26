package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	outboxengine "herald/contexts/eventing/outbox-engine"
	usagemetering "herald/contexts/eventing/usage-metering"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "herald/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	outbox outboxengine.Module
	usage  usagemetering.Module
}

func New(
	outbox outboxengine.Module,
	usage usagemetering.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		outbox: outbox,
		usage:  usage,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routed mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /outbox/events", s.handleEnqueueEvent)
	s.mux.HandleFunc("GET /outbox/stats", s.handleOutboxStats)
	s.mux.HandleFunc("GET /outbox/events/failed", s.handleListFailed)
	s.mux.HandleFunc("GET /outbox/events/dead-letter", s.handleListDeadLetter)
	s.mux.HandleFunc("GET /outbox/events", s.handleCorrelationTrace)
	s.mux.HandleFunc("POST /outbox/cleanup", s.handleCleanup)

	s.mux.HandleFunc("POST /usage/records", s.handleRecordUsage)
	s.mux.HandleFunc("GET /usage/rollups", s.handleListRollups)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
