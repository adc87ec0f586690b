package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"mcp-frete-sistema/internal/common/database"
	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/contract"
	contextmanager "mcp-frete-sistema/internal/workers/mcp/context-manager"
	queryanalyzer "mcp-frete-sistema/internal/workers/mcp/query-analyzer"
	responsegenerator "mcp-frete-sistema/internal/workers/mcp/response-generator"
)

var fixedNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeLoader struct {
	calls []*contract.DataLoaderInput
	out   *contract.DataLoaderOutput
	err   error
}

func (f *fakeLoader) Execute(_ context.Context, in *contract.DataLoaderInput) (*contract.DataLoaderOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func delayedFretes() *contract.DataLoaderOutput {
	return &contract.DataLoaderOutput{
		Data: []contract.Record{
			{"id": "F-1", "status": "delayed", "valor_frete": 1234.5},
			{"id": "F-2", "status": "delayed", "valor_frete": 89.9},
		},
		Metadata: contract.LoadMetadata{Domain: contract.DomainFretes, Total: 2, Returned: 2, Source: "postgres"},
	}
}

type fixture struct {
	pipeline *Pipeline
	loader   *fakeLoader
	contexts *contextmanager.Handler
	redis    *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)

	analyzer := queryanalyzer.NewHandler(&queryanalyzer.Config{
		Timeout:         2 * time.Second,
		FallbackToRules: true,
		Location:        time.UTC,
		Language:        "pt-BR",
	}, log, queryanalyzer.WithClock(clock))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	contexts := contextmanager.NewHandler(&contextmanager.Config{
		Timeout:    2 * time.Second,
		KeyPrefix:  "mcp:ctx",
		DefaultTTL: time.Hour,
		MaxHistory: 10,
	}, database.NewRedisFromClient(client), log, contextmanager.WithClock(clock))

	responder := responsegenerator.NewHandler(&responsegenerator.Config{
		Timeout:        2 * time.Second,
		DefaultFormat:  contract.FormatMarkdown,
		Language:       "pt-BR",
		MaxSuggestions: 3,
	}, log, responsegenerator.WithClock(clock), responsegenerator.WithRequestIDs(func() string { return "req-1" }))

	loader := &fakeLoader{out: delayedFretes()}
	p := New(analyzer, loader, contexts, responder, noop.NewTracerProvider().Tracer("test"), contract.DomainFretes, log, WithClock(clock))
	return &fixture{pipeline: p, loader: loader, contexts: contexts, redis: mr}
}

func (f *fixture) stored(t *testing.T, sessionID string) *contract.ContextManagerOutput {
	t.Helper()
	out, err := f.contexts.Execute(context.Background(), &contract.ContextManagerInput{Action: contract.ActionGet, SessionID: sessionID})
	require.NoError(t, err)
	return out
}

func TestPipeline_Run(t *testing.T) {
	f := newFixture(t)

	res, err := f.pipeline.Run(context.Background(), Request{
		Query:     "fretes atrasados de hoje",
		SessionID: "sess-1",
		UserID:    "u-1",
	})
	require.NoError(t, err)

	assert.Equal(t, contract.IntentMonitor, res.Analysis.Intent.Primary)
	assert.Equal(t, contract.DomainFretes, res.Analysis.Domain.Primary)

	require.Len(t, f.loader.calls, 1)
	loadIn := f.loader.calls[0]
	assert.Equal(t, contract.DomainFretes, loadIn.Domain)
	require.NotNil(t, loadIn.Filters)
	assert.Equal(t, []contract.Status{contract.StatusDelayed}, loadIn.Filters.Status)
	assert.Equal(t, &contract.DateRange{Start: "2026-03-10", End: "2026-03-10"}, loadIn.Filters.DateRange)

	require.NotNil(t, res.Response)
	assert.Empty(t, res.Errors)
	assert.Contains(t, res.Response.Response.Content, "Encontrei 2 registro(s) de fretes.")
	assert.Equal(t, contract.FormatMarkdown, res.Response.Response.Format)
	assert.Equal(t, 2, res.Data.Metadata.Total)

	stored := f.stored(t, "sess-1")
	require.True(t, stored.Success)
	require.NotNil(t, stored.Context)
	conv := stored.Context.Conversation
	require.NotNil(t, conv)
	require.Len(t, conv.History, 1)
	assert.Equal(t, "fretes atrasados de hoje", conv.History[0].Query)
	assert.Equal(t, contract.IntentMonitor, conv.LastIntent)
	assert.Equal(t, contract.DomainFretes, conv.LastDomain)
	assert.Equal(t, "fretes", conv.CurrentTopic)
	require.NotNil(t, stored.Context.User)
	assert.Equal(t, []string{"fretes atrasados de hoje"}, stored.Context.User.RecentQueries)
	assert.Equal(t, contract.DomainFretes, stored.Context.Domain.Focus)
}

func TestPipeline_Run_AccumulatesTurns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.Run(ctx, Request{Query: "fretes atrasados de hoje", SessionID: "sess-2"})
	require.NoError(t, err)
	_, err = f.pipeline.Run(ctx, Request{Query: "relatório de fretes pendentes", SessionID: "sess-2"})
	require.NoError(t, err)

	stored := f.stored(t, "sess-2")
	require.NotNil(t, stored.Context)
	require.Len(t, stored.Context.Conversation.History, 2)
	assert.Equal(t, contract.IntentReport, stored.Context.Conversation.LastIntent)
	assert.Equal(t, int64(2), stored.Metadata.Version)
	assert.Nil(t, stored.Context.User)
}

func TestPipeline_Run_LoadFailure(t *testing.T) {
	f := newFixture(t)
	f.loader.err = errors.New("connection refused")

	res, err := f.pipeline.Run(context.Background(), Request{Query: "fretes atrasados de hoje", SessionID: "sess-3"})
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, string(apperrors.ErrCodeInternal), res.Errors[0].Code)
	assert.Contains(t, res.Response.Response.Content, "Não foi possível concluir a consulta.")
	assert.Empty(t, res.Response.Actions)
	assert.Equal(t, 0, res.Data.Metadata.Total)

	// the turn is still recorded
	stored := f.stored(t, "sess-3")
	require.NotNil(t, stored.Context)
	assert.Len(t, stored.Context.Conversation.History, 1)
}

func TestPipeline_Run_ContextStoreDown(t *testing.T) {
	f := newFixture(t)
	f.redis.SetError("ERR store offline")

	res, err := f.pipeline.Run(context.Background(), Request{Query: "fretes atrasados de hoje", SessionID: "sess-4"})
	require.NoError(t, err)

	assert.Empty(t, f.loader.calls)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, string(apperrors.ErrCodeContextStoreFailed), res.Errors[0].Code)
	assert.Contains(t, res.Response.Response.Content, "Não foi possível concluir a consulta.")
}

func TestPipeline_Run_InvalidQuery(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Run(context.Background(), Request{Query: "   ", SessionID: "sess-5"})
	require.Error(t, err)
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeContractValidationFailed, stdErr.Code)
	assert.Empty(t, f.loader.calls)
}
