package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
	"github.com/micro-ha/bloomin-presence/internal/pipeline"
)

// Runner executes pipeline runs synchronously.
type Runner interface {
	Run(ctx context.Context, trig pipeline.Trigger) (pipeline.Report, error)
	LastReport() (pipeline.Report, bool)
	Target() *frame.Target
}

// Discoverer runs BLE characteristic discovery on demand.
type Discoverer interface {
	Discover(ctx context.Context, target *frame.Target) (frame.BLECache, error)
}

// API groups HTTP handlers and dependencies.
type API struct {
	runner     Runner
	discoverer Discoverer
	logger     *slog.Logger
}

// New creates HTTP handlers with explicit dependencies. discoverer is nil
// when BLE wake is disabled.
func New(runner Runner, discoverer Discoverer, logger *slog.Logger) *API {
	return &API{runner: runner, discoverer: discoverer, logger: logger}
}

// Logger returns request logger used by HTTP middleware.
func (a *API) Logger() *slog.Logger {
	return a.logger
}

// Health reports service liveness.
func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "frame": a.runner.Target().ID})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
