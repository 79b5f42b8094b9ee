// Package httpmiddleware assembles the chi middleware stack used by the ops
// server.
package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/lewisedginton/milordbot/pkg/logger"
)

// Config holds configuration for HTTP middleware application.
// Use DefaultConfig() for sensible defaults, then customize as needed.
type Config struct {
	Logger   logger.Logger   // request logging, skipped when nil
	CORS     *CORSConfig     // nil disables CORS
	Security *secure.Options // nil uses secure package defaults
	Timeout  time.Duration   // zero disables the request timeout

	// Extra runs innermost, after the built-in stack.
	Extra []func(http.Handler) http.Handler

	EnableSecurity  bool
	EnableRealIP    bool
	EnableHeartbeat bool // adds /ping
}

// DefaultConfig returns the ops server configuration.
func DefaultConfig(log logger.Logger) Config {
	cors := DefaultCORSConfig()
	return Config{
		Logger:          log,
		CORS:            &cors,
		Timeout:         30 * time.Second,
		EnableSecurity:  true,
		EnableRealIP:    true,
		EnableHeartbeat: true,
	}
}

// ApplyToRouter applies the configured middleware to a Chi router.
// First applied is outermost:
//
//	security, real IP, logging and correlation, recovery, CORS, timeout,
//	heartbeat, extra
func ApplyToRouter(router chi.Router, config Config) {
	if config.EnableSecurity {
		router.Use(Security(config.Security))
	}
	if config.EnableRealIP {
		router.Use(middleware.RealIP)
	}
	if config.Logger != nil {
		router.Use(logger.HTTPMiddleware(config.Logger))
	}
	router.Use(middleware.Recoverer)
	if config.CORS != nil {
		router.Use(CORS(*config.CORS))
	}
	if config.Timeout > 0 {
		router.Use(middleware.Timeout(config.Timeout))
	}
	if config.EnableHeartbeat {
		router.Use(middleware.Heartbeat("/ping"))
	}
	for _, mw := range config.Extra {
		router.Use(mw)
	}
}
