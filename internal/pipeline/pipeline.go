// Package pipeline chains the four tools into one conversational turn.
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/common/textnorm"
	"mcp-frete-sistema/internal/contract"
)

type Analyzer interface {
	Execute(ctx context.Context, in *contract.QueryAnalyzerInput) (*contract.QueryAnalyzerOutput, error)
}

type Loader interface {
	Execute(ctx context.Context, in *contract.DataLoaderInput) (*contract.DataLoaderOutput, error)
}

type ContextStore interface {
	Execute(ctx context.Context, in *contract.ContextManagerInput) (*contract.ContextManagerOutput, error)
}

type Responder interface {
	Execute(ctx context.Context, in *contract.ResponseGeneratorInput) (*contract.ResponseGeneratorOutput, error)
}

type Request struct {
	Query           string                      `json:"query"`
	SessionID       string                      `json:"sessionId"`
	UserID          string                      `json:"userId,omitempty"`
	UserProfile     *contract.UserProfile       `json:"userProfile,omitempty"`
	Limit           *int                        `json:"limit,omitempty"`
	ResponseOptions *contract.ResponseOptions   `json:"responseOptions,omitempty"`
	Templates       *contract.ResponseTemplates `json:"templates,omitempty"`
}

type Result struct {
	Analysis *contract.QueryAnalyzerOutput     `json:"analysis"`
	Data     *contract.DataLoaderOutput        `json:"data"`
	Response *contract.ResponseGeneratorOutput `json:"response"`
	Errors   []contract.ToolError              `json:"errors,omitempty"`
}

type Pipeline struct {
	analyzer      Analyzer
	loader        Loader
	contexts      ContextStore
	responder     Responder
	tracer        trace.Tracer
	defaultDomain contract.Domain
	now           func() time.Time
	logger        logger.Logger
}

type Option func(*Pipeline)

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(analyzer Analyzer, loader Loader, contexts ContextStore, responder Responder, tracer trace.Tracer, defaultDomain contract.Domain, log logger.Logger, opts ...Option) *Pipeline {
	if !defaultDomain.Loadable() {
		defaultDomain = contract.DomainFretes
	}
	p := &Pipeline{
		analyzer:      analyzer,
		loader:        loader,
		contexts:      contexts,
		responder:     responder,
		tracer:        tracer,
		defaultDomain: defaultDomain,
		now:           time.Now,
		logger:        log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run answers one query. Analysis and response failures are returned; context and load
// failures become upstream errors that steer the response to its error path. Recording
// the turn afterwards is best effort.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("session.id", req.SessionID),
	))
	defer span.End()

	analysis, err := p.analyze(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return nil, err
	}

	var upstream []contract.ToolError
	stored := p.loadContext(ctx, req)
	if stored != nil && !stored.Success {
		upstream = append(upstream, stored.Errors...)
	}

	loadIn := FiltersFromAnalysis(analysis, p.defaultDomain, req.Limit)
	var data *contract.DataLoaderOutput
	if len(upstream) == 0 {
		if data, err = p.load(ctx, loadIn); err != nil {
			upstream = append(upstream, apperrors.ToToolError(err, ""))
		}
	}
	if data == nil {
		data = &contract.DataLoaderOutput{Data: []contract.Record{}, Metadata: contract.LoadMetadata{Domain: loadIn.Domain}}
	}

	respIn := &contract.ResponseGeneratorInput{
		Query:     req.Query,
		Analysis:  *analysis,
		Data:      *data,
		Errors:    upstream,
		Options:   req.ResponseOptions,
		Templates: req.Templates,
	}
	if stored != nil {
		respIn.Context = stored.Context
	}
	resp, err := p.respond(ctx, respIn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "response failed")
		return nil, err
	}

	p.recordTurn(ctx, req, analysis, loadIn.Domain)

	span.SetAttributes(
		attribute.String("domain", string(loadIn.Domain)),
		attribute.Int("errors", len(resp.Errors)),
	)
	return &Result{Analysis: analysis, Data: data, Response: resp, Errors: resp.Errors}, nil
}

func (p *Pipeline) analyze(ctx context.Context, req Request) (*contract.QueryAnalyzerOutput, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.analyze")
	defer span.End()

	in := &contract.QueryAnalyzerInput{Query: req.Query}
	if req.SessionID != "" || req.UserProfile != nil {
		in.Context = &contract.QueryContext{SessionID: req.SessionID, UserProfile: req.UserProfile}
	}
	out, err := p.analyzer.Execute(ctx, in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("intent", string(out.Intent.Primary)),
		attribute.String("domain", string(out.Domain.Primary)),
	)
	return out, nil
}

// loadContext returns nil when the context could not even be asked for.
func (p *Pipeline) loadContext(ctx context.Context, req Request) *contract.ContextManagerOutput {
	ctx, span := p.tracer.Start(ctx, "pipeline.context.get")
	defer span.End()

	out, err := p.contexts.Execute(ctx, &contract.ContextManagerInput{Action: contract.ActionGet, SessionID: req.SessionID, UserID: req.UserID})
	if err != nil {
		span.RecordError(err)
		p.logger.Warn("context lookup rejected", map[string]interface{}{
			"sessionId": req.SessionID,
			"error":     err.Error(),
		})
		return nil
	}
	return out
}

func (p *Pipeline) load(ctx context.Context, in *contract.DataLoaderInput) (*contract.DataLoaderOutput, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.load", trace.WithAttributes(
		attribute.String("domain", string(in.Domain)),
	))
	defer span.End()

	out, err := p.loader.Execute(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("total", out.Metadata.Total), attribute.Bool("cached", out.Metadata.Cached))
	return out, nil
}

func (p *Pipeline) respond(ctx context.Context, in *contract.ResponseGeneratorInput) (*contract.ResponseGeneratorOutput, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.respond")
	defer span.End()

	out, err := p.responder.Execute(ctx, in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) recordTurn(ctx context.Context, req Request, a *contract.QueryAnalyzerOutput, domain contract.Domain) {
	ctx, span := p.tracer.Start(ctx, "pipeline.context.merge")
	defer span.End()

	now := p.now().UTC()
	turnDomain := a.Domain.Primary
	conv := &contract.ConversationContext{
		History:    []contract.ConversationTurn{{Query: req.Query, Intent: a.Intent.Primary, Domain: turnDomain, Timestamp: &now}},
		LastIntent: a.Intent.Primary,
		LastDomain: turnDomain,
	}
	if kw := textnorm.Keywords(req.Query, 1); len(kw) > 0 {
		conv.CurrentTopic = kw[0]
	}
	data := &contract.ContextData{
		Conversation: conv,
		Domain:       &contract.DomainContext{Focus: domain, LastEntities: a.Entities},
	}
	if req.UserID != "" {
		data.User = &contract.UserContext{ID: req.UserID, RecentQueries: []string{req.Query}}
	}

	out, err := p.contexts.Execute(ctx, &contract.ContextManagerInput{
		Action:    contract.ActionMerge,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Data:      data,
	})
	switch {
	case err != nil:
		span.RecordError(err)
		p.logger.Warn("failed to record turn", map[string]interface{}{"sessionId": req.SessionID, "error": err.Error()})
	case !out.Success:
		p.logger.Warn("failed to record turn", map[string]interface{}{"sessionId": req.SessionID, "errors": out.Errors})
	}
}
