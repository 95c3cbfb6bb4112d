package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"textrefine/internal/config"
	"textrefine/internal/router"
)

const (
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	// Refine calls may stream, retry and continue several rounds upstream.
	writeTimeout    = 5 * time.Minute
	idleTimeout     = 120 * time.Second
	rateLimitExpiry = 3 * time.Minute
)

// Server exposes the router over HTTP.
type Server struct {
	cfg     config.Config
	router  *router.Router
	app     *echo.Echo
	address string
	logger  *slog.Logger
}

// New validates cfg and builds the echo application.
func New(cfg config.Config, rt *router.Router, logger *slog.Logger) (*Server, error) {
	if rt == nil {
		return nil, errors.New("router must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apiErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(baseMiddleware(logger)...)
	if limit := cfg.Server.RateLimit; limit.RequestsPerSecond > 0 {
		e.Use(rateLimiter(limit))
	}

	srv := &Server{
		cfg:     cfg,
		router:  rt,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
		logger:  logger,
	}
	srv.registerRoutes()
	return srv, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	printStartupBanner(os.Stdout, s.cfg.Server.Port)
	s.logger.Info("starting server", "addr", s.address, "profiles", s.router.Profiles())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", s.address, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("server shutdown complete")
	return nil
}

func baseMiddleware(logger *slog.Logger) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.Recover(),
		middleware.RequestID(),
		middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogLatency:   true,
			LogMethod:    true,
			LogURI:       true,
			LogStatus:    true,
			LogRemoteIP:  true,
			LogRequestID: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				level := slog.LevelInfo
				if v.Status >= http.StatusInternalServerError {
					level = slog.LevelWarn
				}
				logger.LogAttrs(c.Request().Context(), level, "request",
					slog.String("request_id", v.RequestID),
					slog.String("method", v.Method),
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.String("remote_ip", v.RemoteIP),
					slog.Int64("latency_ms", v.Latency.Milliseconds()),
					slog.Any("error", v.Error),
				)
				return nil
			},
		}),
		middleware.SecureWithConfig(middleware.SecureConfig{
			XSSProtection:         "1; mode=block",
			ContentTypeNosniff:    "nosniff",
			XFrameOptions:         "DENY",
			HSTSMaxAge:            31536000,
			ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		}),
	}
}

// rateLimiter throttles each client IP; health checks are exempt.
func rateLimiter(limit config.RateLimitConfig) echo.MiddlewareFunc {
	burst := limit.Burst
	if burst <= 0 {
		burst = int(limit.RequestsPerSecond) + 1
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(limit.RequestsPerSecond),
		Burst:     burst,
		ExpiresIn: rateLimitExpiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == healthPath
		},
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return newAPIError(http.StatusForbidden, errTypeInvalidRequest, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return newAPIError(http.StatusTooManyRequests, errTypeRateLimit, "rate limit exceeded")
		},
	})
}

func printStartupBanner(w io.Writer, port int) {
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	fmt.Fprintf(w, `
textrefine ready on %[1]s
  GET  %[2]s
  POST %[3]s   {"profile"?, "messages", "current"?}
  POST %[4]s {"profile"?, "text"}
Example:
  curl %[1]s%[3]s -H 'Content-Type: application/json' -d '{"messages":[{"role":"user","content":"hello world"}]}'

`, base, healthPath, refinePath, translatePath)
}
