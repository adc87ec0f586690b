package dataloader

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"mcp-frete-sistema/internal/common/database"
	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/common/metrics"
	"mcp-frete-sistema/internal/contract"
	"mcp-frete-sistema/internal/workers/mcp/data-loader/queries"
)

const (
	TaskType = "data-loader"
)

type Handler struct {
	config     *Config
	backends   map[string]Backend
	cache      *Cache // nil disables caching
	now        func() time.Time
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

type Option func(*Handler)

// WithBackend registers b under the backend name it reports, replacing any default.
func WithBackend(b Backend) Option {
	return func(h *Handler) { h.backends[b.Name()] = b }
}

func WithCache(c *Cache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler wires the loader to whichever stores are available. Any of the clients may be
// nil; a domain routed to a missing backend fails with a connection error.
func NewHandler(config *Config, pg *database.PostgresClient, es *database.ElasticsearchClient, rdb *database.RedisClient, log logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		config:   config,
		backends: make(map[string]Backend),
		now:      time.Now,
		logger: log.WithFields(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
	if pg != nil && pg.DB != nil {
		WithBackend(NewPostgresBackend(pg.DB, h.logger))(h)
	}
	if es != nil && es.Client != nil {
		WithBackend(NewElasticsearchBackend(es.Client, config.IndexPrefix, h.logger))(h)
	}
	if rdb != nil && rdb.Client != nil && config.CacheTTL > 0 {
		h.cache = NewCache(rdb.Client, config.CacheTTL, h.logger)
	}
	for _, opt := range opts {
		opt(h)
	}
	h.errHandler = apperrors.NewErrorHandler(h.logger)
	return h
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	done := metrics.TrackCall(TaskType)
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, res := contract.DecodeDataLoaderInput([]byte(job.Variables))
	if !res.Valid {
		metrics.RecordViolations(TaskType, "input", res.Codes())
		h.logger.Warn("input rejected", map[string]interface{}{
			"jobKey": job.Key,
			"codes":  res.Codes(),
		})
		h.errHandler.HandleJobError(context.Background(), client, job, apperrors.NewContractValidationError(TaskType, "input", res))
		done(metrics.StatusRejected)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.errHandler.HandleJobError(context.Background(), client, job, err)
		done(metrics.StatusFailed)
		return
	}

	h.completeJob(client, job, output)
	if output.Complete() {
		done(metrics.StatusSuccess)
	} else {
		done(metrics.StatusPartial)
	}
}

// Execute loads one page of a domain. Parts of the request the domain cannot serve are
// skipped and reported in errors; the rest of the load still happens.
func (h *Handler) Execute(ctx context.Context, in *contract.DataLoaderInput) (*contract.DataLoaderOutput, error) {
	if res := contract.ValidateDataLoaderInput(in); !res.Valid {
		metrics.RecordViolations(TaskType, "input", res.Codes())
		return nil, apperrors.NewContractValidationError(TaskType, "input", res)
	}

	start := h.now()
	spec, _ := queries.Lookup(in.Domain)
	limit, offset := h.config.page(in.Options)
	plan := queries.NewPlan(spec, in, queries.Page{Limit: limit, Offset: offset})

	backendName := h.config.BackendFor(in.Domain)
	backend, ok := h.backends[backendName]
	if !ok {
		return nil, apperrors.NewDatabaseConnectionFailedError(fmt.Errorf("%s backend is not configured", backendName))
	}

	useCache := h.cache != nil && (in.Options == nil || in.Options.UseCache == nil || *in.Options.UseCache)
	var key string
	var out *contract.DataLoaderOutput
	cached := false
	if useCache {
		key = h.cache.Key(in, plan.Page)
		out, cached = h.cache.Get(ctx, key)
	}

	if !cached {
		loaded, err := backend.Load(ctx, plan)
		if err != nil {
			h.logger.Error("load failed", map[string]interface{}{
				"domain":  in.Domain,
				"backend": backendName,
				"error":   err.Error(),
			})
			return nil, err
		}
		out = loaded
		if out.Data == nil {
			out.Data = []contract.Record{}
		}
		out.Errors = append(append([]contract.ToolError{}, plan.Issues...), out.Errors...)
		if len(out.Errors) == 0 {
			out.Errors = nil
		}
		out.Metadata = contract.LoadMetadata{
			Domain:   in.Domain,
			Total:    out.Metadata.Total,
			Returned: len(out.Data),
			Offset:   offset,
			HasMore:  offset+len(out.Data) < out.Metadata.Total,
			Source:   backend.Name(),
		}
		if useCache {
			h.cache.Set(ctx, key, out)
		}
	}

	out.Metadata.Cached = cached
	out.Metadata.ExecutionTime = max(h.now().Sub(start).Milliseconds(), 0)
	out.Enrichments = nil
	if in.Options == nil || in.Options.Enrich == nil || *in.Options.Enrich {
		out.Enrichments = enrich(out, spec)
	}

	if res := contract.ValidateDataLoaderOutput(out); !res.Valid {
		metrics.RecordViolations(TaskType, "output", res.Codes())
		return nil, apperrors.NewContractValidationError(TaskType, "output", res)
	}

	h.logger.Info("data loaded", map[string]interface{}{
		"domain":     in.Domain,
		"source":     out.Metadata.Source,
		"total":      out.Metadata.Total,
		"returned":   out.Metadata.Returned,
		"cached":     cached,
		"errorCount": len(out.Errors),
		"durationMs": out.Metadata.ExecutionTime,
	})
	return out, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *contract.DataLoaderOutput) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}
