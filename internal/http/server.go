// Package http exposes the current snapshot, the derived sensors and a
// manual refresh over HTTP.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"propertyfees/internal/coordinator"
	"propertyfees/internal/log"
)

const (
	defaultRefreshLimit   = 6
	defaultRefreshTimeout = 2 * time.Minute
)

// StateSource is read by every GET handler.
type StateSource interface {
	State() *coordinator.State
	Year() int
	Interval() time.Duration
	NextUpdate() time.Time
}

// Refresher runs one refresh on demand.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Server struct {
	http.Server
	source         StateSource
	refresher      Refresher
	rateLimiter    *rateLimiter
	logger         *log.Logger
	refreshTimeout time.Duration
	shutdownOnce   sync.Once
}

type options struct {
	logger         *log.Logger
	metrics        http.Handler
	refreshLimit   int
	refreshTimeout time.Duration
}

type Option func(*options)

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(o *options) { o.metrics = h }
}

// WithRefreshLimit caps manual refreshes per client per minute.
func WithRefreshLimit(n int) Option {
	return func(o *options) { o.refreshLimit = n }
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(o *options) { o.refreshTimeout = d }
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, src StateSource, ref Refresher, opts ...Option) *Server {
	o := options{
		refreshLimit:   defaultRefreshLimit,
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Discard()
	}
	logger := o.logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		source:         src,
		refresher:      ref,
		rateLimiter:    newRateLimiter(o.refreshLimit, time.Minute),
		logger:         logger,
		refreshTimeout: o.refreshTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/snapshot", s.withSecurityHeaders(s.handleSnapshot))
	mux.HandleFunc("GET /api/sensors", s.withSecurityHeaders(s.handleSensors))
	mux.HandleFunc("GET /api/sensors/{id}", s.withSecurityHeaders(s.handleSensor))
	mux.HandleFunc("POST /api/refresh", s.withSecurityHeaders(s.handleRefresh))
	if o.metrics != nil {
		mux.Handle("GET /metrics", o.metrics)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           log.RequestIDMiddleware(logger, requestID)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting on POST, and
// request logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		logger := log.FromContext(ctx)
		clientIP := extractClientIP(r)

		w.Header().Set(requestIDHeader, r.Header.Get(requestIDHeader))
		setSecurityHeaders(w.Header())

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		defer func() {
			log.LogHTTPEnd(ctx, logger, r, rw.statusCode, time.Since(start), clientIP)
		}()

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, start) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			writeError(rw, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next(rw, r)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
