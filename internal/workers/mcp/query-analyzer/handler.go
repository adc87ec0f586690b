package queryanalyzer

import (
	"context"
	"errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "mcp-frete-sistema/internal/common/errors"
	httpclient "mcp-frete-sistema/internal/common/http"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/common/metrics"
	"mcp-frete-sistema/internal/contract"
)

const (
	TaskType = "query-analyzer"
)

var (
	ErrAnalysisFailed  = errors.New("QUERY_ANALYSIS_FAILED")
	ErrAnalysisTimeout = errors.New("QUERY_ANALYSIS_TIMEOUT")
)

// Engine produces an analysis for a validated request.
type Engine interface {
	Name() string
	Analyze(ctx context.Context, in *contract.QueryAnalyzerInput) (*contract.QueryAnalyzerOutput, error)
}

type Handler struct {
	config     *Config
	engine     Engine // nil when no AI service is configured
	rules      *Rules
	now        func() time.Time
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

type Option func(*Handler)

// WithClock replaces the wall clock used for relative dates and timings.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithEngine replaces the AI engine. A nil engine leaves only the built-in rules.
func WithEngine(e Engine) Option {
	return func(h *Handler) { h.engine = e }
}

func NewHandler(config *Config, log logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		config: config,
		now:    time.Now,
		logger: log.WithFields(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
	if config.GenAIBaseURL != "" {
		h.engine = NewGenAI(httpclient.NewClient(config.GenAIBaseURL, config.APIKey, config.GenAITimeout, config.MaxRetries))
	}
	for _, opt := range opts {
		opt(h)
	}
	h.rules = NewRules(config, h.now)
	h.errHandler = apperrors.NewErrorHandler(h.logger)
	return h
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	done := metrics.TrackCall(TaskType)
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, res := contract.DecodeQueryAnalyzerInput([]byte(job.Variables))
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
	done(metrics.StatusSuccess)
}

// Execute analyzes a query. Both the request and the produced analysis are checked against
// the contract.
func (h *Handler) Execute(ctx context.Context, in *contract.QueryAnalyzerInput) (*contract.QueryAnalyzerOutput, error) {
	if res := contract.ValidateQueryAnalyzerInput(in); !res.Valid {
		metrics.RecordViolations(TaskType, "input", res.Codes())
		return nil, apperrors.NewContractValidationError(TaskType, "input", res)
	}

	start := h.now()
	out, err := h.analyze(ctx, in)
	if err != nil {
		return nil, err
	}

	applyOptions(out, in.Options, h.config.MaxEntities)
	if out.Metadata == nil {
		out.Metadata = &contract.AnalysisMetadata{Engine: EngineRules}
	}
	out.Metadata.AnalyzedAt = h.now().UTC()
	out.Metadata.ProcessingTime = max(h.now().Sub(start).Milliseconds(), 0)

	if res := contract.ValidateQueryAnalyzerOutputFor(out, in.Query); !res.Valid {
		metrics.RecordViolations(TaskType, "output", res.Codes())
		return nil, apperrors.NewContractValidationError(TaskType, "output", res)
	}

	h.logger.Info("query analyzed", map[string]interface{}{
		"engine":      out.Metadata.Engine,
		"intent":      out.Intent.Primary,
		"domain":      out.Domain.Primary,
		"entityCount": len(out.Entities),
		"temporal":    out.Temporal.Detected,
		"durationMs":  out.Metadata.ProcessingTime,
	})
	return out, nil
}

func (h *Handler) analyze(ctx context.Context, in *contract.QueryAnalyzerInput) (*contract.QueryAnalyzerOutput, error) {
	if h.engine == nil {
		out, err := h.rules.Analyze(ctx, in)
		if err != nil {
			return nil, classify(err)
		}
		return out, nil
	}

	out, err := h.engine.Analyze(ctx, in)
	if err == nil {
		return out, nil
	}
	if ctx.Err() == nil && h.config.FallbackToRules {
		h.logger.Warn("engine failed, falling back to rules", map[string]interface{}{
			"engine": h.engine.Name(),
			"error":  err.Error(),
		})
		if out, rerr := h.rules.Analyze(ctx, in); rerr == nil {
			return out, nil
		}
	}
	return nil, classify(err)
}

func classify(err error) error {
	if errors.Is(err, ErrAnalysisTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewQueryAnalysisTimeoutError()
	}
	return apperrors.NewQueryAnalysisFailedError(err)
}

// applyOptions empties the groups the caller opted out of and caps the entity list. An
// explicit maxEntities wins over the configured cap; a configured cap of 0 means unlimited.
func applyOptions(out *contract.QueryAnalyzerOutput, opts *contract.AnalyzerOptions, defaultMax int) {
	if !opts.WantEntities() {
		out.Entities = nil
	} else {
		limit := defaultMax
		if opts != nil && opts.MaxEntities != nil {
			limit = *opts.MaxEntities
		} else if limit <= 0 {
			limit = len(out.Entities)
		}
		if len(out.Entities) > limit {
			out.Entities = out.Entities[:limit]
		}
	}

	if !opts.WantTemporal() {
		out.Temporal = contract.TemporalAnalysis{Detected: false}
	}
	if !opts.WantSemantic() {
		out.Semantic = contract.SemanticAnalysis{Sentiment: contract.SentimentNeutral}
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *contract.QueryAnalyzerOutput) {
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
