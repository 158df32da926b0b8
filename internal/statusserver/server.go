// Package statusserver serves metrics, health and a progress snapshot over
// HTTP while a run is in progress.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"reeler/internal/logging"
	"reeler/internal/metrics"
	"reeler/internal/progress"
)

const shutdownTimeout = 5 * time.Second

// Server is the optional status endpoint.
type Server struct {
	metrics *metrics.Metrics
	tracker *progress.Tracker
	runID   string
	logger  *slog.Logger
	started time.Time

	srv      *http.Server
	listener net.Listener
	done     chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// New constructs a server. tracker and m may be nil, in which case the
// corresponding routes report empty data.
func New(m *metrics.Metrics, tracker *progress.Tracker, runID string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	if tracker == nil {
		tracker = progress.NewTracker()
	}
	return &Server{
		metrics: m,
		tracker: tracker,
		runID:   runID,
		logger:  logging.NewComponentLogger(logger, "status"),
		started: time.Now(),
	}
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(s.logger))
	if s.metrics != nil {
		r.Use(metrics.RequestMiddleware(s.metrics))
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Get("/healthz", s.health)
	r.Get("/progress", s.progress)
	r.Get("/progress/{stage}", s.progress)
	return r
}

// Start listens on bind and serves until ctx ends or Shutdown is called.
func (s *Server) Start(ctx context.Context, bind string) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("listen %s: %w", bind, err)
	}
	s.listener = listener
	s.srv = &http.Server{Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", logging.Error(err))
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Shutdown()
		case <-s.done:
		}
	}()
	s.logger.Info("status server listening", logging.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown() error {
	if s.srv == nil {
		return nil
	}
	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.stopErr = s.srv.Shutdown(ctx)
		<-s.done
	})
	return s.stopErr
}

type healthResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id,omitempty"`
	Uptime string `json:"uptime"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		RunID:  s.runID,
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

type unitResponse struct {
	ID        string    `json:"id"`
	Stage     string    `json:"stage"`
	State     string    `json:"state"`
	Fraction  float64   `json:"fraction"`
	Label     string    `json:"label,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type progressResponse struct {
	RunID  string                    `json:"run_id,omitempty"`
	Counts map[string]map[string]int `json:"counts"`
	Units  []unitResponse            `json:"units"`
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	filter := progress.Stage(chi.URLParam(r, "stage"))
	if filter != "" && filter != progress.StageDownload && filter != progress.StageEncode {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown stage %q", filter)})
		return
	}
	resp := progressResponse{RunID: s.runID, Counts: map[string]map[string]int{}, Units: []unitResponse{}}
	for stage, kinds := range s.tracker.Counts() {
		if filter != "" && stage != filter {
			continue
		}
		inner := make(map[string]int, len(kinds))
		for kind, n := range kinds {
			inner[string(kind)] = n
		}
		resp.Counts[string(stage)] = inner
	}
	for _, unit := range s.tracker.Snapshot() {
		if filter != "" && unit.Stage != filter {
			continue
		}
		resp.Units = append(resp.Units, unitResponse{
			ID:        unit.ID,
			Stage:     string(unit.Stage),
			State:     string(unit.Kind),
			Fraction:  unit.Fraction(),
			Label:     unit.Label,
			StartedAt: unit.StartedAt,
			UpdatedAt: unit.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
