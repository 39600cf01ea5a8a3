package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
	"github.com/hochfrequenz/tasklink/internal/scheduler"
)

// MappingLister reads the mapping table
type MappingLister interface {
	List(ctx context.Context) ([]domain.MappingEntry, error)
}

// RunLister reads the run history, newest first
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error)
}

// Syncer controls the pass scheduler
type Syncer interface {
	ForceSync() bool
	Status() scheduler.Status
}

// Server is the HTTP API server
type Server struct {
	mappings MappingLister
	runs     RunLister
	syncer   Syncer
	addr     string
	mux      *http.ServeMux
	sseHub   *SSEHub
	logger   *log.Logger
}

// NewServer creates a new API server
func NewServer(mappings MappingLister, runs RunLister, syncer Syncer, addr string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		mappings: mappings,
		runs:     runs,
		syncer:   syncer,
		addr:     addr,
		mux:      http.NewServeMux(),
		sseHub:   NewSSEHub(),
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/status", s.statusHandler())
	s.mux.HandleFunc("/api/mappings", s.listMappingsHandler())
	s.mux.HandleFunc("/api/runs", s.listRunsHandler())
	s.mux.HandleFunc("/api/sync", s.syncHandler())
	s.mux.HandleFunc("/api/events", s.sseHandler())
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves HTTP until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.sseHub.Run(hubCtx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Printf("web API listening on %s", s.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Broadcast sends an event to all SSE clients
func (s *Server) Broadcast(event SSEEvent) {
	s.sseHub.Broadcast(event)
}

// Report publishes a finished pass to SSE clients
func (s *Server) Report(_ context.Context, r domain.RunResult) error {
	s.Broadcast(SSEEvent{ID: r.RunID, Type: "run", Data: runToResponse(r)})
	return nil
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
