package api

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/star/closeapproach/internal/auth"
	"github.com/star/closeapproach/internal/cad"
	"github.com/star/closeapproach/internal/health"
	"github.com/star/closeapproach/internal/metrics"
	"github.com/star/closeapproach/internal/session"
	"github.com/star/closeapproach/internal/trend"
)

// Searcher runs a close-approach search. *cad.Runner implements it.
type Searcher interface {
	Run(ctx context.Context, q cad.Query) (*cad.Result, error)
}

// Uploader stores CSV exports remotely. *export.S3Uploader implements it.
type Uploader interface {
	ObjectKey(body cad.Body, ts time.Time) string
	Upload(ctx context.Context, key string, rows cad.RowSet) (string, error)
}

// DefaultMaxFetches caps concurrent searches across all clients when
// Config.MaxFetches is unset.
const DefaultMaxFetches = 64

// Config holds server settings.
type Config struct {
	Addr            string
	Auth            auth.Config
	MaxFetchesPerIP int
	MaxFetches      int
	TrustProxy      bool // honour X-Forwarded-For when limiting
	Trend           trend.Capability
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        Config
	runner     Searcher
	sessions   *session.Store
	uploader   Uploader
	limiter    *fetchLimiter
}

// NewServer creates a configured HTTP server. uploader may be nil, in which
// case S3 export answers 503.
func NewServer(cfg Config, logger *slog.Logger, runner Searcher, sessions *session.Store, uploader Uploader, ready *health.Checker, webFS fs.FS) *Server {
	if cfg.MaxFetches <= 0 {
		cfg.MaxFetches = DefaultMaxFetches
	}

	s := &Server{
		logger:   logger,
		cfg:      cfg,
		runner:   runner,
		sessions: sessions,
		uploader: uploader,
		limiter:  newFetchLimiter(cfg.MaxFetchesPerIP, cfg.MaxFetches),
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", ready.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/options", s.handleOptions)
	mux.HandleFunc("GET /api/v1/approaches", s.handleApproaches)
	mux.HandleFunc("GET /api/v1/approaches.csv", s.handleCSV)
	mux.HandleFunc("GET /api/v1/chart", s.handleChart)
	mux.HandleFunc("POST /api/v1/export/s3", s.handleExportS3)
	if webFS != nil {
		mux.Handle("GET /", http.FileServerFS(webFS))
	}

	// Build middleware chain: metrics -> logging -> request ID -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = requestIDMiddleware(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second, // a "both" search waits on two provider calls
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// requestIDHeader carries the correlation ID on requests and responses.
const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the correlation ID assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestIDMiddleware reuses a well-formed incoming X-Request-ID or assigns
// a new UUID, and echoes it on the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", sr.Header().Get(requestIDHeader),
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
