package dataloader

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"mcp-frete-sistema/internal/common/config"
	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/contract"
	"mcp-frete-sistema/internal/workers/mcp/data-loader/queries"
)

// Backend executes a resolved plan. It fills Data, Metadata.Total and Aggregations; a
// failed aggregation is reported in Errors rather than failing the load.
type Backend interface {
	Name() string
	Load(ctx context.Context, plan *queries.Plan) (*contract.DataLoaderOutput, error)
}

type PostgresBackend struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresBackend(db *sql.DB, log logger.Logger) *PostgresBackend {
	return &PostgresBackend{db: db, logger: log}
}

func (b *PostgresBackend) Name() string { return config.BackendPostgres }

func (b *PostgresBackend) Load(ctx context.Context, plan *queries.Plan) (*contract.DataLoaderOutput, error) {
	out := &contract.DataLoaderOutput{Data: []contract.Record{}}

	count := plan.CountStatement()
	if err := b.db.QueryRowContext(ctx, count.SQL, count.Args...).Scan(&out.Metadata.Total); err != nil {
		return nil, b.classify(ctx, "count", err)
	}

	if plan.Page.Limit > 0 && plan.Page.Offset < out.Metadata.Total {
		data, err := b.page(ctx, plan)
		if err != nil {
			return nil, b.classify(ctx, "page", err)
		}
		out.Data = data
	}

	for _, a := range plan.Aggregations {
		res, err := b.aggregate(ctx, plan, a)
		if err != nil {
			if ctx.Err() != nil {
				return nil, b.classify(ctx, "aggregation", err)
			}
			b.logger.Warn("aggregation failed", map[string]interface{}{
				"aggregation": a.Key(),
				"error":       err.Error(),
			})
			te := apperrors.ToToolError(apperrors.NewQueryExecutionFailedError("aggregation", err), "")
			te.Field = "aggregations." + a.Key()
			out.Errors = append(out.Errors, te)
			continue
		}
		if out.Aggregations == nil {
			out.Aggregations = make(map[string]contract.AggregationResult)
		}
		out.Aggregations[a.Key()] = res
	}
	return out, nil
}

func (b *PostgresBackend) page(ctx context.Context, plan *queries.Plan) ([]contract.Record, error) {
	st := plan.PageStatement()
	rows, err := b.db.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	data := make([]contract.Record, 0, plan.Page.Limit)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var rec contract.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		data = append(data, rec)
	}
	return data, rows.Err()
}

func (b *PostgresBackend) aggregate(ctx context.Context, plan *queries.Plan, a contract.Aggregation) (contract.AggregationResult, error) {
	res := contract.AggregationResult{Type: a.Type, Field: a.Field}
	st := plan.AggregationStatement(a)

	if a.Type != contract.AggGroupBy {
		var v sql.NullFloat64
		if err := b.db.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&v); err != nil {
			return res, err
		}
		if v.Valid {
			res.Value = &v.Float64
		}
		return res, nil
	}

	res.Field = a.GroupBy
	rows, err := b.db.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return res, err
	}
	defer rows.Close()

	res.Groups = []contract.AggregationGroup{}
	for rows.Next() {
		var g contract.AggregationGroup
		if a.Field == "" {
			err = rows.Scan(&g.Key, &g.Count)
		} else {
			var v sql.NullFloat64
			err = rows.Scan(&g.Key, &g.Count, &v)
			if v.Valid {
				g.Value = &v.Float64
			}
		}
		if err != nil {
			return res, fmt.Errorf("scan group: %w", err)
		}
		res.Groups = append(res.Groups, g)
	}
	return res, rows.Err()
}

func (b *PostgresBackend) classify(ctx context.Context, queryType string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewQueryTimeoutError(queryType)
	case errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone):
		return apperrors.NewDatabaseConnectionFailedError(err)
	default:
		return apperrors.NewQueryExecutionFailedError(queryType, err)
	}
}
