// Package server exposes the document service over HTTP (echo) and a gRPC
// health endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/tender-extractor/internal/common"
)

// Options configures the HTTP server.
type Options struct {
	CORSOrigins    []string
	MaxUploadBytes int64
	RateLimitRPS   float64 // per client IP on /api, 0 disables
	Production     bool
	Logger         *slog.Logger
}

// OptionsFrom maps process configuration onto Options.
func OptionsFrom(cfg *common.Config, logger *slog.Logger) Options {
	return Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		Production:     cfg.App.IsProduction(),
		Logger:         logger,
	}
}

// New builds the echo instance with middleware and routes registered.
func New(opts Options, h *Handlers) *echo.Echo {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(opts.Production, logger)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, rid string) {
			req := c.Request()
			c.SetRequest(req.WithContext(common.WithRequestID(req.Context(), rid)))
		},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"req_id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"elapsed_ms", v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			logger.Info("http.request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("http.panic", append(common.LogAttrs(c.Request().Context()),
				"error", err, "stack", string(stack))...)
			return err
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  opts.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
		ExposeHeaders: []string{echo.HeaderContentDisposition, echo.HeaderXRequestID, echo.HeaderRetryAfter},
	}))

	api := e.Group("/api")
	if opts.MaxUploadBytes > 0 {
		// Multipart framing needs headroom above the file itself.
		api.Use(middleware.BodyLimit(fmt.Sprintf("%dK", (opts.MaxUploadBytes>>10)+64)))
	}
	if opts.RateLimitRPS > 0 {
		api.Use(rateLimiter(opts.RateLimitRPS))
	}

	RegisterRoutes(e, api, h)
	return e
}

// RegisterRoutes wires every endpoint onto e and its /api group.
func RegisterRoutes(e *echo.Echo, api *echo.Group, h *Handlers) {
	e.GET("/health", h.HandleHealth)

	api.POST("/summarize", h.HandleSummarize)
	api.GET("/summarize/:id", h.HandleGetSummary)
	api.GET("/status/:id", h.HandleStatus)
	api.GET("/submittals/:id", h.HandleGetSubmittals)
	api.POST("/submittals/:id", h.HandleComputeSubmittals)
	api.GET("/history", h.HandleHistory)
	api.GET("/export/:id", h.HandleExport)
}

func rateLimiter(rps float64) echo.MiddlewareFunc {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return newAPIError(http.StatusForbidden, "FORBIDDEN", "Could not identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			out := newAPIError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			out.RetryAfter = 1
			return out
		},
	})
}

// Serve runs e on addr until ctx is cancelled, then shuts it down within timeout.
func Serve(ctx context.Context, e *echo.Echo, addr string, timeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http.server.start", "addr", addr)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("http.server.stop")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
