package dataloader

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-frete-sistema/internal/common/config"
	"mcp-frete-sistema/internal/common/database"
	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/contract"
	"mcp-frete-sistema/internal/workers/mcp/data-loader/queries"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func createTestConfig() *Config {
	return &Config{
		Timeout:      5 * time.Second,
		DefaultLimit: 20,
		MaxLimit:     100,
		CacheTTL:     time.Minute,
		IndexPrefix:  "mcp-",
		Backends: map[contract.Domain]string{
			contract.DomainMonitoramento: config.BackendElasticsearch,
		},
	}
}

// memoryBackend serves a fixed number of generated rows and remembers the last plan.
type memoryBackend struct {
	name  string
	total int
	calls int
	plan  *queries.Plan
}

func (m *memoryBackend) Name() string { return m.name }

func (m *memoryBackend) Load(_ context.Context, plan *queries.Plan) (*contract.DataLoaderOutput, error) {
	m.calls++
	m.plan = plan
	out := &contract.DataLoaderOutput{Metadata: contract.LoadMetadata{Total: m.total}}
	for i := plan.Page.Offset; i < m.total && i < plan.Page.Offset+plan.Page.Limit; i++ {
		out.Data = append(out.Data, contract.Record{"id": fmt.Sprintf("r-%d", i), "status": "pending"})
	}
	return out, nil
}

func newTestHandler(t *testing.T, backend *memoryBackend, opts ...Option) *Handler {
	t.Helper()
	opts = append([]Option{WithBackend(backend)}, opts...)
	return NewHandler(createTestConfig(), nil, nil, nil, logger.NewTestLogger(t), opts...)
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) *apperrors.StandardError {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok, "expected StandardError, got %v", err)
	assert.Equal(t, code, stdErr.Code)
	return stdErr
}

func TestHandler_Execute_Paging(t *testing.T) {
	tests := []struct {
		name        string
		options     *contract.LoadOptions
		wantLimit   int
		wantOffset  int
		wantReturn  int
		wantHasMore bool
	}{
		{"default limit", nil, 20, 0, 20, true},
		{"explicit window", &contract.LoadOptions{Limit: intPtr(10), Offset: intPtr(140)}, 10, 140, 10, false},
		{"clamped to max", &contract.LoadOptions{Limit: intPtr(1000)}, 100, 0, 100, true},
		{"count only", &contract.LoadOptions{Limit: intPtr(0)}, 0, 0, 0, true},
		{"offset past the end", &contract.LoadOptions{Offset: intPtr(500)}, 20, 500, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &memoryBackend{name: config.BackendPostgres, total: 150}
			h := newTestHandler(t, backend)

			out, err := h.Execute(context.Background(), &contract.DataLoaderInput{
				Domain:  contract.DomainFretes,
				Options: tt.options,
			})
			require.NoError(t, err)

			assert.Equal(t, queries.Page{Limit: tt.wantLimit, Offset: tt.wantOffset}, backend.plan.Page)
			assert.Equal(t, tt.wantReturn, out.Metadata.Returned)
			assert.Len(t, out.Data, tt.wantReturn)
			assert.Equal(t, 150, out.Metadata.Total)
			assert.Equal(t, tt.wantOffset, out.Metadata.Offset)
			assert.Equal(t, tt.wantHasMore, out.Metadata.HasMore)
			assert.Equal(t, contract.DomainFretes, out.Metadata.Domain)
			assert.Equal(t, config.BackendPostgres, out.Metadata.Source)
		})
	}
}

func TestHandler_Execute_UnsupportedPartsArePartial(t *testing.T) {
	backend := &memoryBackend{name: config.BackendPostgres, total: 3}
	h := newTestHandler(t, backend)

	out, err := h.Execute(context.Background(), &contract.DataLoaderInput{
		Domain:  contract.DomainFretes,
		Options: &contract.LoadOptions{OrderBy: &contract.OrderBy{Field: "password"}},
	})
	require.NoError(t, err)

	assert.Len(t, out.Data, 3)
	assert.False(t, out.Complete())
	require.Len(t, out.Errors, 1)
	assert.Equal(t, string(apperrors.ErrCodeUnsupportedField), out.Errors[0].Code)
	assert.Equal(t, "options.orderBy.field", out.Errors[0].Field)
}

func TestHandler_Execute_Routing(t *testing.T) {
	pg := &memoryBackend{name: config.BackendPostgres, total: 1}
	es := &memoryBackend{name: config.BackendElasticsearch, total: 2}
	h := newTestHandler(t, pg, WithBackend(es))

	out, err := h.Execute(context.Background(), &contract.DataLoaderInput{Domain: contract.DomainMonitoramento})
	require.NoError(t, err)
	assert.Equal(t, config.BackendElasticsearch, out.Metadata.Source)
	assert.Equal(t, 1, es.calls)
	assert.Equal(t, 0, pg.calls)
}

func TestHandler_Execute_MissingBackend(t *testing.T) {
	h := newTestHandler(t, &memoryBackend{name: config.BackendPostgres})

	_, err := h.Execute(context.Background(), &contract.DataLoaderInput{Domain: contract.DomainMonitoramento})
	requireCode(t, err, apperrors.ErrCodeDatabaseConnectionFailed)
}

func TestHandler_Execute_Cache(t *testing.T) {
	cache, _ := newTestCache(t)
	backend := &memoryBackend{name: config.BackendPostgres, total: 5}
	h := newTestHandler(t, backend, WithCache(cache))
	in := &contract.DataLoaderInput{Domain: contract.DomainPedidos}

	first, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, first.Metadata.Cached)

	second, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, second.Metadata.Cached)
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, first.Data, second.Data)
	assert.NotNil(t, second.Enrichments)

	bypass := &contract.DataLoaderInput{Domain: contract.DomainPedidos, Options: &contract.LoadOptions{UseCache: boolPtr(false)}}
	third, err := h.Execute(context.Background(), bypass)
	require.NoError(t, err)
	assert.False(t, third.Metadata.Cached)
	assert.Equal(t, 2, backend.calls)
}

func TestHandler_Execute_EnrichOff(t *testing.T) {
	h := newTestHandler(t, &memoryBackend{name: config.BackendPostgres, total: 5})

	out, err := h.Execute(context.Background(), &contract.DataLoaderInput{
		Domain:  contract.DomainEntregas,
		Options: &contract.LoadOptions{Enrich: boolPtr(false)},
	})
	require.NoError(t, err)
	assert.Nil(t, out.Enrichments)
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input *contract.DataLoaderInput
		code  string
	}{
		{"multi-domain", &contract.DataLoaderInput{Domain: contract.DomainMulti}, contract.CodeDomainNotLoadable},
		{"negative limit", &contract.DataLoaderInput{Domain: contract.DomainFretes, Options: &contract.LoadOptions{Limit: intPtr(-1)}}, contract.CodeNegativeLimit},
		{"unknown custom filter", &contract.DataLoaderInput{
			Domain:  contract.DomainFretes,
			Filters: &contract.LoadFilters{CustomFilters: contract.ScalarMap{"senha": contract.StringValue("x")}},
		}, contract.CodeCustomFilterNotAllowed},
	}

	backend := &memoryBackend{name: config.BackendPostgres}
	h := newTestHandler(t, backend)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			stdErr := requireCode(t, err, apperrors.ErrCodeContractValidationFailed)
			assert.Contains(t, stdErr.Details, tt.code)
		})
	}
	assert.Equal(t, 0, backend.calls)
}

func TestHandler_Execute_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	h := NewHandler(createTestConfig(), database.NewPostgresFromDB(db), nil, nil, logger.NewTestLogger(t))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "transportadoras" t WHERE \("razao_social"::text ILIKE \$1`).
		WithArgs("%Rodo%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT to_jsonb\(t\) FROM "transportadoras" t`).
		WillReturnRows(sqlmock.NewRows([]string{"to_jsonb"}).AddRow([]byte(`{"id": 9, "razao_social": "Rodonaves"}`)))

	search := "Rodo"
	out, err := h.Execute(context.Background(), &contract.DataLoaderInput{
		Domain:  contract.DomainTransportadoras,
		Filters: &contract.LoadFilters{Search: &search},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 1, out.Metadata.Returned)
	assert.False(t, out.Metadata.HasMore)
	assert.Equal(t, "Rodonaves", out.Data[0]["razao_social"])
}
