// Package api exposes the tools, the pipeline and the tool registry over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mcp-frete-sistema/internal/common/database"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/pipeline"
	"mcp-frete-sistema/pkg/registry"
)

const maxBodyBytes = 1 << 20

// ToolObserver records tool calls as OpenTelemetry metrics.
type ToolObserver interface {
	RecordToolCall(ctx context.Context, tool, status string, duration time.Duration)
}

type QueryRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type Config struct {
	Tools       map[string]ToolFunc
	Pipeline    QueryRunner
	Registry    *registry.ToolRegistry
	Checks      map[string]database.Pinger // readiness dependencies by name
	Observer    ToolObserver
	CORSOrigins []string
	Metrics     http.Handler // defaults to promhttp.Handler()
}

type server struct {
	tools    map[string]ToolFunc
	pipeline QueryRunner
	registry *registry.ToolRegistry
	checks   map[string]database.Pinger
	observer ToolObserver
	logger   logger.Logger
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg Config, log logger.Logger) http.Handler {
	s := &server{
		tools:    cfg.Tools,
		pipeline: cfg.Pipeline,
		registry: cfg.Registry,
		checks:   cfg.Checks,
		observer: cfg.Observer,
		logger:   log.WithFields(map[string]interface{}{"component": "http"}),
	}
	metricsHandler := cfg.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", metricsHandler)

	r.Route("/mcp", func(r chi.Router) {
		r.Get("/tools", s.listTools)
		r.Post("/tools/{tool}", s.runTool)
		r.Post("/query", s.runQuery)
	})
	return r
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request", map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"durationMs": time.Since(start).Milliseconds(),
				"requestId":  chimw.GetReqID(r.Context()),
			})
		})
	}
}
