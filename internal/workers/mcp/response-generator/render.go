package responsegenerator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"maps"
	"slices"
	"strings"

	"mcp-frete-sistema/internal/contract"
)

const maxColumns = 6

var domainLabels = map[contract.Domain]string{
	contract.DomainFretes:          "fretes",
	contract.DomainPedidos:         "pedidos",
	contract.DomainEntregas:        "entregas",
	contract.DomainEmbarques:       "embarques",
	contract.DomainFinanceiro:      "despesas financeiras",
	contract.DomainTransportadoras: "transportadoras",
	contract.DomainMonitoramento:   "entregas monitoradas",
	contract.DomainMulti:           "registros",
}

func domainLabel(d contract.Domain) string {
	if l, ok := domainLabels[d]; ok {
		return l
	}
	return "registros"
}

func titleFor(d contract.Domain) string {
	l := domainLabel(d)
	return strings.ToUpper(l[:1]) + l[1:]
}

// document is everything a format needs to lay out a response.
type document struct {
	Title        string
	Summary      string
	Columns      []string
	Rows         [][]string
	Records      []contract.Record
	Aggregations map[string]contract.AggregationResult
	Insights     []string
}

func newDocument(title, summary string, records []contract.Record, rows int) *document {
	if len(records) > rows {
		records = records[:rows]
	}
	doc := &document{Title: title, Summary: summary, Records: records}
	doc.Columns = columnsFor(records)
	for _, r := range records {
		row := make([]string, len(doc.Columns))
		for i, c := range doc.Columns {
			row[i] = formatValue(c, r[c])
		}
		doc.Rows = append(doc.Rows, row)
	}
	return doc
}

// columnsFor is the sorted union of record keys, capped at maxColumns.
func columnsFor(records []contract.Record) []string {
	set := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			set[k] = struct{}{}
		}
	}
	cols := slices.Sorted(maps.Keys(set))
	if len(cols) > maxColumns {
		cols = cols[:maxColumns]
	}
	return cols
}

var htmlLayout = template.Must(template.New("response").Parse(
	`<section class="mcp-response"><h2>{{.Title}}</h2><p>{{.Summary}}</p>` +
		`{{if .Rows}}<table><thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>` +
		`<tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody></table>{{end}}` +
		`{{if .Insights}}<ul>{{range .Insights}}<li>{{.}}</li>{{end}}</ul>{{end}}</section>`))

var htmlTable = template.Must(template.New("table").Parse(
	`<table><thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>` +
		`<tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody></table>`))

func render(format contract.ResponseFormat, doc *document) (string, error) {
	switch format {
	case contract.FormatText:
		return renderText(doc), nil
	case contract.FormatMarkdown:
		return renderMarkdown(doc), nil
	case contract.FormatHTML:
		var buf bytes.Buffer
		if err := htmlLayout.Execute(&buf, doc); err != nil {
			return "", err
		}
		return buf.String(), nil
	case contract.FormatJSON:
		records := doc.Records
		if records == nil {
			records = []contract.Record{}
		}
		raw, err := json.Marshal(map[string]interface{}{
			"summary":      doc.Summary,
			"records":      records,
			"aggregations": doc.Aggregations,
			"insights":     doc.Insights,
		})
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return "", fmt.Errorf("unsupported format %q", format)
}

func renderText(doc *document) string {
	var b strings.Builder
	b.WriteString(doc.Summary)
	for _, s := range doc.Insights {
		b.WriteString("\n- ")
		b.WriteString(s)
	}
	return b.String()
}

func renderMarkdown(doc *document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n%s", doc.Title, doc.Summary)
	if len(doc.Rows) > 0 {
		b.WriteString("\n\n")
		b.WriteString(markdownTable(doc))
	}
	if len(doc.Insights) > 0 {
		b.WriteString("\n\n### Destaques\n")
		b.WriteString(bullets(doc.Insights))
	}
	return b.String()
}

func markdownTable(doc *document) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(doc.Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(doc.Columns)) + "\n")
	for _, row := range doc.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// renderTable lays out the records for the table section in the response format.
func renderTable(format contract.ResponseFormat, doc *document) (string, error) {
	switch format {
	case contract.FormatHTML:
		var buf bytes.Buffer
		if err := htmlTable.Execute(&buf, doc); err != nil {
			return "", err
		}
		return buf.String(), nil
	case contract.FormatJSON:
		raw, err := json.Marshal(doc.Records)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return markdownTable(doc), nil
	}
}

func bullets(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + l)
	}
	return b.String()
}
