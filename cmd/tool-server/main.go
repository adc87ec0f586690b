package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mcp-frete-sistema/internal/api"
	"mcp-frete-sistema/internal/common/camunda"
	"mcp-frete-sistema/internal/common/config"
	"mcp-frete-sistema/internal/common/database"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/common/observability"
	"mcp-frete-sistema/internal/contract"
	"mcp-frete-sistema/internal/pipeline"
	contextmanager "mcp-frete-sistema/internal/workers/mcp/context-manager"
	dataloader "mcp-frete-sistema/internal/workers/mcp/data-loader"
	queryanalyzer "mcp-frete-sistema/internal/workers/mcp/query-analyzer"
	responsegenerator "mcp-frete-sistema/internal/workers/mcp/response-generator"
	"mcp-frete-sistema/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":      err.Error(),
				"attempt":    i + 1,
				"maxRetries": maxRetries,
				"retryIn":    delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func fatal(log logger.Logger, msg string, err error) {
	log.Error(msg, map[string]interface{}{"error": err.Error()})
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	log := cfg.NewLogger()
	log.Info("Starting tool server...", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx := context.Background()

	obs, err := observability.New(ctx, cfg.Observability, nil, log)
	if err != nil {
		fatal(log, "observability init failed", err)
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		fatal(log, "postgres failed after retries", err)
	}
	defer pg.Close()
	log.Info("PostgreSQL connected successfully", nil)

	// --- Init Redis with retry ---
	rdb := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		fatal(log, "redis failed after retries", err)
	}
	defer rdb.Close()
	log.Info("Redis connected successfully", nil)

	checks := map[string]database.Pinger{"postgres": pg, "redis": rdb}

	// --- Init Elasticsearch only when a domain is routed to it ---
	var es *database.ElasticsearchClient
	if cfg.Tools.DataLoader.UsesElasticsearch() {
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			fatal(log, "elasticsearch failed after retries", err)
		}
		checks["elasticsearch"] = es
		log.Info("Elasticsearch connected successfully", nil)
	}

	// --- Tools ---
	cmCfg, err := contextmanager.ConfigFrom(cfg)
	if err != nil {
		fatal(log, "context manager config invalid", err)
	}
	analyzer := queryanalyzer.NewHandler(queryanalyzer.ConfigFrom(cfg), log)
	loader := dataloader.NewHandler(dataloader.ConfigFrom(cfg), pg, es, rdb, log)
	contexts := contextmanager.NewHandler(cmCfg, rdb, log)
	responder := responsegenerator.NewHandler(responsegenerator.ConfigFrom(cfg), log)

	// --- Zeebe workers ---
	var zeebe *camunda.Client
	var workers *camunda.Workers
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
		if err != nil {
			fatal(log, "zeebe client failed", err)
		}
		log.Info("Zeebe client connected successfully", map[string]interface{}{"gateway": cfg.Camunda.BrokerAddress})
		checks["zeebe"] = zeebe

		workers = camunda.NewWorkers(zeebe.GetClient(), log)
		workers.Register(queryanalyzer.TaskType, config.GetWorkerConfig(cfg, queryanalyzer.TaskType), analyzer)
		workers.Register(dataloader.TaskType, config.GetWorkerConfig(cfg, dataloader.TaskType), loader)
		workers.Register(contextmanager.TaskType, config.GetWorkerConfig(cfg, contextmanager.TaskType), contexts)
		workers.Register(responsegenerator.TaskType, config.GetWorkerConfig(cfg, responsegenerator.TaskType), responder)
		log.Info("Workers registered", map[string]interface{}{"count": workers.Count()})
	} else {
		log.Info("Camunda disabled, serving tools over HTTP only", nil)
	}

	// --- HTTP API ---
	reg, err := registry.Build(cfg.App.Version)
	if err != nil {
		fatal(log, "tool registry build failed", err)
	}
	runner := pipeline.New(analyzer, loader, contexts, responder, obs.Tracer(),
		contract.Domain(cfg.Tools.DataLoader.DefaultDomain), log)

	srv := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.NewRouter(api.Config{
			Tools:       api.Tools(analyzer, loader, contexts, responder),
			Pipeline:    runner,
			Registry:    reg,
			Checks:      checks,
			Observer:    obs,
			CORSOrigins: cfg.Server.CORSOrigins,
		}, log),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "HTTP server failed", err)
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", map[string]interface{}{"error": err.Error()})
	}
	if workers != nil {
		workers.Stop(shutdownCtx)
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			log.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down observability", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Tool server stopped gracefully", nil)
}
