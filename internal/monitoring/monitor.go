// Package monitoring wires the bot's health probes and serves them, together
// with Prometheus metrics, on the ops HTTP server.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lewisedginton/milordbot/internal/mediastore"
	"github.com/lewisedginton/milordbot/pkg/health"
	"github.com/lewisedginton/milordbot/pkg/logger"
)

// Health status constants
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// SlackProbes is what the monitor needs from the Slack connector.
type SlackProbes interface {
	ProbeSocket(ctx context.Context) error
	ProbeAuth(ctx context.Context) error
}

// Config holds configuration for the health monitor
type Config struct {
	Logger           logger.Logger
	Timeout          time.Duration
	FailureThreshold int

	Slack SlackProbes // optional

	// Store is probed by checking that StoreFile exists.
	Store     mediastore.FileProvider
	StoreFile string

	Version string
}

// HealthMonitor manages health checks and monitoring endpoints for the application
type HealthMonitor struct {
	checker   *health.Checker
	logger    logger.Logger
	startTime time.Time
	version   string
}

// NewHealthMonitor creates a new health monitor with configured checks
func NewHealthMonitor(cfg Config) *HealthMonitor {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	opts := []health.Option{health.WithLogger(log)}
	if cfg.Timeout > 0 {
		opts = append(opts, health.WithTimeout(cfg.Timeout))
	}
	if cfg.FailureThreshold > 0 {
		opts = append(opts, health.WithFailureThreshold(cfg.FailureThreshold))
	}
	checker := health.New(opts...)

	checker.AddLiveness(health.NewProbeFunc("process", func(context.Context) error {
		return nil
	}))

	if cfg.Slack != nil {
		checker.AddReadiness(health.NewProbeFunc("slack_socket", cfg.Slack.ProbeSocket))
		checker.AddReadiness(health.NewProbeFunc("slack_auth", cfg.Slack.ProbeAuth))
	}
	if cfg.Store != nil && cfg.StoreFile != "" {
		checker.AddReadiness(StoreProbe(cfg.Store, cfg.StoreFile))
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	return &HealthMonitor{
		checker:   checker,
		logger:    log,
		startTime: time.Now(),
		version:   version,
	}
}

// StoreProbe reports an error unless file is present in the media store.
func StoreProbe(store mediastore.FileProvider, file string) health.Probe {
	return health.NewProbeFunc("media_store", func(ctx context.Context) error {
		ok, err := store.Exists(ctx, file)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: %w", file, mediastore.ErrNotFound)
		}
		return nil
	})
}

// Checker exposes the underlying checker.
func (hm *HealthMonitor) Checker() *health.Checker {
	return hm.checker
}

type combinedResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Uptime    string          `json:"uptime"`
	Version   string          `json:"version"`
	Liveness  health.Response `json:"liveness"`
	Readiness health.Response `json:"readiness"`
}

// HealthHandler returns a combined health endpoint that includes both liveness and readiness
// GET /health
func (hm *HealthMonitor) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		live, liveErr := hm.checker.Liveness(ctx)
		ready, readyErr := hm.checker.Readiness(ctx)

		resp := combinedResponse{
			Status:    statusHealthy,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(hm.startTime).Round(time.Second).String(),
			Version:   hm.version,
			Liveness:  health.NewResponse(live, liveErr),
			Readiness: health.NewResponse(ready, readyErr),
		}

		code := http.StatusOK
		if !live.Healthy || !ready.Healthy {
			resp.Status = statusUnhealthy
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			hm.logger.Error("Failed to encode health response", logger.ErrorField(err))
		}
	}
}
