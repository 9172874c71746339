// Package statusapi serves the bot's status report as JSON over HTTP.
// It reads the durable snapshot only, so it never touches the
// scheduler's live ledger.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/schrute_bucks/internal/ledger"
	"github.com/eddiefleurent/schrute_bucks/internal/storage"
)

// Config holds status server settings.
type Config struct {
	ListenAddr    string
	InvestmentCap float64
}

// Server exposes /api/status and /health.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	storage storage.Interface
	logger  *logrus.Logger
	cfg     Config
}

// StatusReport is the JSON document served to operators. It mirrors
// the per-tick report the scheduler logs.
type StatusReport struct {
	TotalCommitted      float64           `json:"total_committed"`
	InvestmentCap       float64           `json:"investment_cap"`
	InvestmentProgress  float64           `json:"investment_progress_pct"`
	RealizedProfitTotal float64           `json:"realized_profit_total"`
	SuccessfulCloses    int               `json:"successful_closes"`
	FailedCloseAttempts int               `json:"failed_close_attempts"`
	SuccessRatePct      float64           `json:"success_rate_pct"`
	LastPurchaseAt      *time.Time        `json:"last_purchase_at,omitempty"`
	ActivePositions     []ledger.Position `json:"active_positions"`
	ClosedPositions     []ledger.Position `json:"closed_positions"`
}

// NewServer creates a status server backed by the given state store.
func NewServer(cfg Config, store storage.Interface, logger *logrus.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		storage: store,
		logger:  logger,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/api/status", s.handleStatus)
	s.router.Get("/health", s.handleHealth)
}

// Start runs the HTTP server until Shutdown or a listener error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.WithField("addr", s.cfg.ListenAddr).Info("starting status server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.storage.LoadSnapshot()
	if err != nil && !errors.Is(err, storage.ErrNoState) {
		s.logger.WithError(err).Error("loading snapshot for status")
		http.Error(w, "failed to load state", http.StatusInternalServerError)
		return
	}

	report := buildReport(snap, s.cfg.InvestmentCap)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.logger.WithError(err).Error("encoding status report")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func buildReport(snap ledger.Snapshot, investmentCap float64) StatusReport {
	report := StatusReport{
		TotalCommitted:      snap.TotalCommitted,
		InvestmentCap:       investmentCap,
		RealizedProfitTotal: snap.RealizedProfitTotal,
		SuccessfulCloses:    snap.SuccessfulCloses,
		FailedCloseAttempts: snap.FailedCloseAttempts,
		ActivePositions:     snap.ActivePositions,
		ClosedPositions:     snap.ClosedPositions,
	}
	if report.ActivePositions == nil {
		report.ActivePositions = []ledger.Position{}
	}
	if report.ClosedPositions == nil {
		report.ClosedPositions = []ledger.Position{}
	}
	if investmentCap > 0 {
		report.InvestmentProgress = snap.TotalCommitted / investmentCap * 100
	}
	if attempts := snap.SuccessfulCloses + snap.FailedCloseAttempts; attempts > 0 {
		report.SuccessRatePct = float64(snap.SuccessfulCloses) / float64(attempts) * 100
	}
	if !snap.LastPurchaseAt.IsZero() {
		t := snap.LastPurchaseAt
		report.LastPurchaseAt = &t
	}
	return report
}
