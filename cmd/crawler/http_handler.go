package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/fystack/tron-ledger-crawler/internal/crawler"
	"github.com/fystack/tron-ledger-crawler/pkg/common/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type KindStatus struct {
	RunID      string    `json:"run_id"`
	FinishedAt time.Time `json:"finished_at"`
	Accounts   int       `json:"accounts"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Stored     int       `json:"stored"`
	DurationMs int64     `json:"duration_ms"`
}

type HealthResponse struct {
	Status    string                `json:"status"`
	Timestamp time.Time             `json:"timestamp"`
	Version   string                `json:"version"`
	Storage   string                `json:"storage,omitempty"`
	Kinds     map[string]KindStatus `json:"kinds"`
}

// statusBoard remembers the last finished run of each kind.
type statusBoard struct {
	mu    sync.RWMutex
	kinds map[string]KindStatus
}

func newStatusBoard() *statusBoard {
	return &statusBoard{kinds: make(map[string]KindStatus)}
}

func (b *statusBoard) Record(s crawler.Summary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kinds[string(s.Kind)] = KindStatus{
		RunID:      s.RunID,
		FinishedAt: time.Now().UTC(),
		Accounts:   s.Accounts,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		Stored:     s.Stored,
		DurationMs: s.Duration.Milliseconds(),
	}
}

func (b *statusBoard) snapshot() map[string]KindStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]KindStatus, len(b.kinds))
	for k, v := range b.kinds {
		out[k] = v
	}
	return out
}

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a backend the crawler depends on is reachable.
type HealthCheck func(ctx context.Context) error

type CrawlerHTTPHandler struct {
	version string
	board   *statusBoard
	storage HealthCheck
}

// NewCrawlerHTTPHandler builds the handler. storage may be nil.
func NewCrawlerHTTPHandler(version string, board *statusBoard, storage HealthCheck) *CrawlerHTTPHandler {
	return &CrawlerHTTPHandler{version: version, board: board, storage: storage}
}

func (h *CrawlerHTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

// HandleHealth reports degraded when every account of some kind failed its
// last run, and unavailable with 503 when storage cannot be reached.
func (h *CrawlerHTTPHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Kinds:     h.board.snapshot(),
	}
	for _, k := range resp.Kinds {
		if k.Accounts > 0 && k.Succeeded == 0 {
			resp.Status = "degraded"
			break
		}
	}

	code := http.StatusOK
	if h.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.storage(ctx); err != nil {
			logger.Warn("Storage health check failed", "err", err)
			resp.Status = "unavailable"
			resp.Storage = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			resp.Storage = "ok"
		}
	}
	writeJSON(w, code, resp)
}

func startHTTPServer(addr, version string, board *statusBoard, storage HealthCheck) *http.Server {
	mux := http.NewServeMux()
	NewCrawlerHTTPHandler(version, board, storage).Register(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Crawler HTTP server started",
			"addr", addr,
			"health_endpoint", "/health",
			"metrics_endpoint", "/metrics",
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "err", err)
		}
	}()
	return server
}

func stopHTTPServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", "err", err)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", "status", statusCode, "err", err)
	}
}
