// Package httpapi exposes health, status, recent alerts and metrics over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"TGEMonitor/internal/domain"
)

// StatusProvider is the read side of the orchestrator.
type StatusProvider interface {
	Stats() domain.Stats
	RecentAlerts(hours int) []domain.Analysis
}

// Info describes static facts about the running configuration.
type Info struct {
	Notifiers     []string `json:"notifiers"`
	SocialEnabled bool     `json:"social_enabled"`
	FeedCount     int      `json:"feed_count"`
	Interval      string   `json:"interval"`
}

type handler struct {
	provider StatusProvider
	info     Info
	logger   *slog.Logger
}

// NewRouter builds the chi router. metrics may be nil.
func NewRouter(provider StatusProvider, metrics http.Handler, info Info, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{provider: provider, info: info, logger: logger.With("component", "httpapi")}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Get("/status", h.status)
	r.Get("/alerts", h.alerts)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

type healthResponse struct {
	Status    string     `json:"status"`
	Phase     string     `json:"phase"`
	Cycles    int64      `json:"cycles"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	Errors    int        `json:"last_cycle_errors"`
}

// health is degraded while the most recent cycle recorded errors.
func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	stats := h.provider.Stats()
	resp := healthResponse{Status: "healthy", Phase: stats.Phase, Cycles: stats.Cycles, LastRunAt: stats.LastRunAt}
	if stats.LastCycle != nil && stats.LastCycle.Errors > 0 {
		resp.Status = "degraded"
		resp.Errors = stats.LastCycle.Errors
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	domain.Stats
	Info
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, statusResponse{Stats: h.provider.Stats(), Info: h.info})
}

type alertsResponse struct {
	Hours  int               `json:"hours"`
	Count  int               `json:"count"`
	Alerts []domain.Analysis `json:"alerts"`
}

func (h *handler) alerts(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 24*30 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hours must be an integer between 1 and 720"})
			return
		}
		hours = n
	}
	alerts := h.provider.RecentAlerts(hours)
	h.writeJSON(w, http.StatusOK, alertsResponse{Hours: hours, Count: len(alerts), Alerts: alerts})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response", "error", err)
	}
}

// Server runs the router until its context ends.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer binds handler to addr.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With("component", "httpapi"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", s.srv.Addr)
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
