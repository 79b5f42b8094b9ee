package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/milordbot/pkg/httpmiddleware"
	"github.com/lewisedginton/milordbot/pkg/logger"
	"github.com/lewisedginton/milordbot/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// Server is the ops HTTP server: health endpoints and /metrics.
type Server struct {
	router  chi.Router
	server  *http.Server
	logger  logger.Logger
	monitor *HealthMonitor
}

// NewServer builds the ops router. m may be nil, in which case /metrics is
// not mounted.
func NewServer(port int, monitor *HealthMonitor, m *metrics.Metrics, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}

	r := chi.NewRouter()
	mwCfg := httpmiddleware.DefaultConfig(log)
	if m != nil {
		mwCfg.Extra = append(mwCfg.Extra, m.HTTPMiddleware())
	}
	httpmiddleware.ApplyToRouter(r, mwCfg)

	r.Get("/health", monitor.HealthHandler())
	r.Get("/health/live", monitor.Checker().LivenessHandler())
	r.Get("/health/ready", monitor.Checker().ReadinessHandler())
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	return &Server{
		router:  r,
		logger:  log,
		monitor: monitor,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the routed handler, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Ops server listening", logger.StringField("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ops server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown: %w", err)
	}
	s.logger.Info("Ops server stopped")
	return nil
}
