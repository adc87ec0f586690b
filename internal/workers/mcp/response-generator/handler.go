package responsegenerator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	apperrors "mcp-frete-sistema/internal/common/errors"
	httpclient "mcp-frete-sistema/internal/common/http"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/common/metrics"
	"mcp-frete-sistema/internal/contract"
)

const (
	TaskType = "response-generator"

	EngineRules = "rules"
	EngineGenAI = "genai"
)

type Handler struct {
	config     *Config
	llm        Synthesizer // nil renders deterministically
	now        func() time.Time
	newID      func() string
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

type Option func(*Handler)

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithSynthesizer replaces the LLM. A nil synthesizer disables it.
func WithSynthesizer(s Synthesizer) Option {
	return func(h *Handler) { h.llm = s }
}

func WithRequestIDs(newID func() string) Option {
	return func(h *Handler) { h.newID = newID }
}

func NewHandler(config *Config, log logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		config: config,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: log.WithFields(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
	if config.UseLLM && config.GenAIBaseURL != "" {
		h.llm = NewGenAI(httpclient.NewClient(config.GenAIBaseURL, config.APIKey, config.GenAITimeout, config.MaxRetries))
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

	input, res := contract.DecodeResponseGeneratorInput([]byte(job.Variables))
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
	if len(output.Errors) == 0 {
		done(metrics.StatusSuccess)
	} else {
		done(metrics.StatusPartial)
	}
}

// Execute renders the user-facing answer. Upstream errors take the error path and are
// echoed in the output; an empty load takes the empty path.
func (h *Handler) Execute(ctx context.Context, in *contract.ResponseGeneratorInput) (*contract.ResponseGeneratorOutput, error) {
	if res := contract.ValidateResponseGeneratorInput(in); !res.Valid {
		metrics.RecordViolations(TaskType, "input", res.Codes())
		return nil, apperrors.NewContractValidationError(TaskType, "input", res)
	}

	start := h.now()
	opts := in.Options
	format := h.config.format(opts)
	var style contract.ResponseStyle
	var length contract.ResponseLength
	if opts != nil {
		style, length = opts.Style, opts.Length
	}

	errs := withUserMessages(in.UpstreamErrors())
	p := pathSuccess
	switch {
	case len(errs) > 0:
		p = pathError
	case in.Data.Metadata.Total == 0:
		p = pathEmpty
	}

	summary, tmplName := h.summary(p, in, style, errs)
	engine := EngineRules
	if p == pathSuccess && tmplName == "" && h.llm != nil {
		if text, err := h.llm.Synthesize(ctx, in, summary); err == nil {
			summary, engine = text, EngineGenAI
		} else {
			stdErr := synthesisError(err)
			h.logger.Warn("LLM synthesis failed, using rules", map[string]interface{}{
				"code":  stdErr.Code,
				"error": err.Error(),
			})
		}
	}

	domain := responseDomain(in)
	doc := &document{Title: titleFor(domain), Summary: summary}
	if p != pathError {
		doc = newDocument(titleFor(domain), summary, in.Data.Data, length.Rows())
		doc.Aggregations = in.Data.Aggregations
		doc.Insights = insightsOf(in)
	}
	if length == contract.LengthBrief {
		doc.Insights = nil
	}

	content, err := render(format, doc)
	if err != nil {
		return nil, apperrors.NewResponseRenderFailedError(string(format), err)
	}

	out := &contract.ResponseGeneratorOutput{
		Response: contract.ResponseBody{Content: content, Format: format, Language: h.config.language(opts)},
	}
	if opts.WantSections() {
		if out.Sections, err = buildSections(p, in, format, summary, doc, errs); err != nil {
			return nil, apperrors.NewResponseRenderFailedError(string(format), err)
		}
	}
	if p != pathError {
		if opts.WantActions() {
			out.Actions = buildActions(in)
		}
		if opts.WantFollowUp() {
			out.FollowUp = buildFollowUp(in, h.config.maxSuggestions(opts))
		}
	}
	if len(errs) > 0 {
		out.Errors = errs
	}
	out.Metadata = &contract.ResponseMetadata{
		RequestID:      h.newID(),
		GeneratedAt:    h.now().UTC(),
		ProcessingTime: max(h.now().Sub(start).Milliseconds(), 0),
		Confidence:     in.Analysis.Intent.Confidence,
		Engine:         engine,
		Template:       tmplName,
	}

	if res := contract.ValidateResponseGeneratorOutputFor(out, in); !res.Valid {
		metrics.RecordViolations(TaskType, "output", res.Codes())
		return nil, apperrors.NewContractValidationError(TaskType, "output", res)
	}

	h.logger.Info("response generated", map[string]interface{}{
		"path":       p,
		"format":     format,
		"engine":     engine,
		"sections":   len(out.Sections),
		"errorCount": len(out.Errors),
		"durationMs": out.Metadata.ProcessingTime,
	})
	return out, nil
}

// summary picks the caller's template for the path when it renders to something, and the
// built-in text otherwise. The second result names the template used.
func (h *Handler) summary(p path, in *contract.ResponseGeneratorInput, style contract.ResponseStyle, errs []contract.ToolError) (string, string) {
	var tmpl string
	if t := in.Templates; t != nil {
		switch p {
		case pathError:
			tmpl = t.Error
		case pathEmpty:
			tmpl = t.Empty
		default:
			tmpl = t.Success
		}
	}
	if tmpl != "" {
		if text := renderTemplate(tmpl, templateVars(in)); strings.TrimSpace(text) != "" {
			return text, string(p)
		}
	}

	switch p {
	case pathError:
		return errorSummary(errs), ""
	case pathEmpty:
		return emptySummary(responseDomain(in)), ""
	default:
		return successSummary(in, style), ""
	}
}

func synthesisError(err error) *apperrors.StandardError {
	if errors.Is(err, ErrSynthesisTimeout) {
		return apperrors.NewLLMTimeoutError()
	}
	return apperrors.NewLLMSynthesisFailedError(err)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *contract.ResponseGeneratorOutput) {
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
