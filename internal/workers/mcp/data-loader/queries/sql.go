package queries

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"mcp-frete-sistema/internal/contract"
)

// Statement is a parameterized SQL statement. Identifiers come from the registry and are
// quoted; every caller supplied value travels in Args.
type Statement struct {
	SQL  string
	Args []interface{}
}

type sqlBuilder struct {
	conds []string
	args  []interface{}
}

func (b *sqlBuilder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) where() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func quote(col string) string { return pq.QuoteIdentifier(col) }

// filters renders the WHERE conditions shared by every statement of the plan.
func (p *Plan) filters() *sqlBuilder {
	b := &sqlBuilder{}
	if len(p.IDs) > 0 {
		b.conds = append(b.conds, fmt.Sprintf("%s::text = ANY(%s)", quote(p.Spec.IDColumn), b.arg(pq.Array(p.IDs))))
	}
	if len(p.Statuses) > 0 {
		b.conds = append(b.conds, fmt.Sprintf("%s = ANY(%s)", quote(p.Spec.StatusColumn), b.arg(pq.Array(p.Statuses))))
	}
	if p.DateColumn != "" {
		if p.From != "" {
			b.conds = append(b.conds, fmt.Sprintf("%s::date >= %s", quote(p.DateColumn), b.arg(p.From)))
		}
		if p.To != "" {
			b.conds = append(b.conds, fmt.Sprintf("%s::date <= %s", quote(p.DateColumn), b.arg(p.To)))
		}
	}
	if p.Search != "" && len(p.Spec.Search) > 0 {
		ph := b.arg("%" + escapeLike(p.Search) + "%")
		ors := make([]string, len(p.Spec.Search))
		for i, col := range p.Spec.Search {
			ors[i] = fmt.Sprintf("%s::text ILIKE %s", quote(col), ph)
		}
		b.conds = append(b.conds, "("+strings.Join(ors, " OR ")+")")
	}
	for _, cf := range p.Custom {
		col := quote(cf.Column)
		if p.Spec.IsDateColumn(cf.Column) {
			col += "::date"
		}
		b.conds = append(b.conds, fmt.Sprintf("%s %s %s", col, cf.Op, b.arg(cf.Value)))
	}
	return b
}

func (p *Plan) from() string {
	return " FROM " + quote(p.Spec.Table) + " t"
}

// CountStatement counts every row matching the filters.
func (p *Plan) CountStatement() Statement {
	b := p.filters()
	return Statement{SQL: "SELECT COUNT(*)" + p.from() + b.where(), Args: b.args}
}

// PageStatement selects one page of rows as JSON objects. The id column breaks ties so
// that pages do not overlap.
func (p *Plan) PageStatement() Statement {
	b := p.filters()
	dir := "DESC"
	if !p.Descending {
		dir = "ASC"
	}
	order := fmt.Sprintf("%s %s NULLS LAST", quote(p.OrderColumn), dir)
	if p.OrderColumn != p.Spec.IDColumn {
		order += ", " + quote(p.Spec.IDColumn) + " ASC"
	}
	sql := "SELECT to_jsonb(t)" + p.from() + b.where() + " ORDER BY " + order
	sql += " LIMIT " + b.arg(p.Page.Limit) + " OFFSET " + b.arg(p.Page.Offset)
	return Statement{SQL: sql, Args: b.args}
}

// AggregationStatement computes a over the filtered rows. Scalar aggregations return one
// nullable float8 column; group_by returns (key, count[, value]) rows, largest first. A
// group_by over a date column keeps the newest MaxGroups buckets in chronological order.
func (p *Plan) AggregationStatement(a contract.Aggregation) Statement {
	b := p.filters()
	switch a.Type {
	case contract.AggGroupBy:
		sel := fmt.Sprintf("SELECT COALESCE(%s::text, ''), COUNT(*)", quote(a.GroupBy))
		if a.Field != "" {
			sel += fmt.Sprintf(", SUM(%s)::float8", quote(a.Field))
		}
		if p.Spec.IsDateColumn(a.GroupBy) {
			b.conds = append(b.conds, quote(a.GroupBy)+" IS NOT NULL")
			sql := sel + p.from() + b.where() + fmt.Sprintf(" GROUP BY 1 ORDER BY 1 DESC LIMIT %d", MaxGroups)
			return Statement{SQL: "SELECT * FROM (" + sql + ") g ORDER BY 1 ASC", Args: b.args}
		}
		sql := sel + p.from() + b.where() + fmt.Sprintf(" GROUP BY 1 ORDER BY 2 DESC, 1 ASC LIMIT %d", MaxGroups)
		return Statement{SQL: sql, Args: b.args}
	case contract.AggCount:
		target := "*"
		if a.Field != "" {
			target = quote(a.Field)
		}
		return Statement{SQL: "SELECT COUNT(" + target + ")::float8" + p.from() + b.where(), Args: b.args}
	default:
		fn := strings.ToUpper(string(a.Type))
		return Statement{SQL: fmt.Sprintf("SELECT %s(%s)::float8", fn, quote(a.Field)) + p.from() + b.where(), Args: b.args}
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
