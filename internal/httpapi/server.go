// Package httpapi is the operator surface: health, status, the alert
// journal, the maintenance switch and Prometheus metrics.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/alertwatcher/internal/domain"
	apimw "github.com/hamed0406/alertwatcher/internal/httpapi/middleware"
	"github.com/hamed0406/alertwatcher/internal/repo"
	"github.com/hamed0406/alertwatcher/internal/watcher"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

type StatusSource interface {
	Status() watcher.Status
}

type MaintenanceSwitch interface {
	SetMaintenance(on bool)
	Maintenance() bool
}

type Server struct {
	Logger      *zap.Logger
	Status      StatusSource
	Maintenance MaintenanceSwitch
	Journal     repo.AlertJournal
	Metrics     http.Handler // optional
}

func NewServer(l *zap.Logger, st StatusSource, ms MaintenanceSwitch, j repo.AlertJournal, metrics http.Handler) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Status: st, Maintenance: ms, Journal: j, Metrics: metrics}
}

// Router builds the handler tree. An empty allowedOrigins allows any origin.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, rpm, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(apimw.RequestLogger(s.Logger))
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(rpm, burst))
		r.Use(apimw.RequireAny(keys))

		r.Get("/status", s.handleStatus)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/maintenance", s.handleGetMaintenance)
		r.With(apimw.RequireAdmin(keys)).Post("/maintenance", s.handleSetMaintenance)
	})

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status.Status())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAlertLimit)
	}
	evs, err := s.Journal.Recent(r.Context(), limit)
	if err != nil {
		s.Logger.Warn("alerts_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if evs == nil {
		evs = []domain.AlertEvent{}
	}
	writeJSON(w, http.StatusOK, evs)
}

type maintenancePayload struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleGetMaintenance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.Maintenance.Maintenance()})
}

func (s *Server) handleSetMaintenance(w http.ResponseWriter, r *http.Request) {
	var p maintenancePayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&p); err != nil || p.Enabled == nil {
		writeError(w, http.StatusBadRequest, `bad payload, want {"enabled":true|false}`)
		return
	}
	s.Maintenance.SetMaintenance(*p.Enabled)
	s.Logger.Info("maintenance_set_via_api",
		zap.Bool("enabled", *p.Enabled),
		zap.String("request_id", chimw.GetReqID(r.Context())),
	)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.Maintenance.Maintenance()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
