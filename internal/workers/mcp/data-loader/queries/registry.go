// internal/workers/mcp/data-loader/queries/registry.go
package queries

import (
	"slices"
	"strings"

	"mcp-frete-sistema/internal/contract"
)

// DomainSpec describes where a data domain lives and which of its columns a request may
// touch. Field names in requests are the column names; anything not listed here is
// rejected before it reaches a statement.
type DomainSpec struct {
	Domain       contract.Domain
	Table        string
	IDColumn     string
	StatusColumn string // empty when the domain has no status
	DateColumns  map[contract.DateField]string
	Search       []string
	Orderable    []string
	Numeric      []string
	Groupable    []string
	DefaultOrder string
}

var Registry = map[contract.Domain]*DomainSpec{
	contract.DomainFretes: {
		Domain:       contract.DomainFretes,
		Table:        "fretes",
		IDColumn:     "id",
		StatusColumn: "status",
		DateColumns: map[contract.DateField]string{
			contract.DateFieldCreatedAt:    "criado_em",
			contract.DateFieldUpdatedAt:    "atualizado_em",
			contract.DateFieldDeliveryDate: "data_entrega",
		},
		Search:       []string{"numero_cte", "nome_transportadora", "cidade_destino"},
		Orderable:    []string{"id", "criado_em", "data_entrega", "valor", "peso"},
		Numeric:      []string{"valor", "peso"},
		Groupable:    []string{"status", "uf_destino", "transportadora_id", "modalidade", "data_entrega"},
		DefaultOrder: "criado_em",
	},
	contract.DomainPedidos: {
		Domain:       contract.DomainPedidos,
		Table:        "pedidos",
		IDColumn:     "num_pedido",
		StatusColumn: "status",
		DateColumns: map[contract.DateField]string{
			contract.DateFieldCreatedAt:     "criado_em",
			contract.DateFieldUpdatedAt:     "atualizado_em",
			contract.DateFieldScheduledDate: "data_expedicao",
			contract.DateFieldDeliveryDate:  "data_entrega_prevista",
		},
		Search:       []string{"num_pedido", "raz_social", "cnpj_cliente", "cidade"},
		Orderable:    []string{"num_pedido", "criado_em", "data_expedicao", "data_entrega_prevista", "valor", "peso"},
		Numeric:      []string{"valor", "peso", "pallets"},
		Groupable:    []string{"status", "uf", "cnpj_cliente", "vendedor", "data_entrega_prevista"},
		DefaultOrder: "criado_em",
	},
	contract.DomainEntregas: {
		Domain:       contract.DomainEntregas,
		Table:        "entregas",
		IDColumn:     "id",
		StatusColumn: "status",
		DateColumns: map[contract.DateField]string{
			contract.DateFieldCreatedAt:     "criado_em",
			contract.DateFieldUpdatedAt:     "atualizado_em",
			contract.DateFieldScheduledDate: "data_agenda",
			contract.DateFieldDeliveryDate:  "data_entrega",
		},
		Search:       []string{"numero_nf", "cliente", "municipio"},
		Orderable:    []string{"id", "criado_em", "data_agenda", "data_entrega", "valor_nf"},
		Numeric:      []string{"valor_nf"},
		Groupable:    []string{"status", "uf_destino", "transportadora_id", "data_entrega"},
		DefaultOrder: "data_agenda",
	},
	contract.DomainEmbarques: {
		Domain:       contract.DomainEmbarques,
		Table:        "embarques",
		IDColumn:     "numero_embarque",
		StatusColumn: "status",
		DateColumns: map[contract.DateField]string{
			contract.DateFieldCreatedAt:     "criado_em",
			contract.DateFieldUpdatedAt:     "atualizado_em",
			contract.DateFieldScheduledDate: "data_embarque",
		},
		Search:       []string{"numero_embarque", "placa_veiculo", "nome_motorista"},
		Orderable:    []string{"numero_embarque", "criado_em", "data_embarque", "peso_total", "valor_total"},
		Numeric:      []string{"peso_total", "valor_total", "valor_frete"},
		Groupable:    []string{"status", "tipo_carga", "transportadora_id", "data_embarque"},
		DefaultOrder: "data_embarque",
	},
	contract.DomainFinanceiro: {
		Domain:       contract.DomainFinanceiro,
		Table:        "despesas_extras",
		IDColumn:     "id",
		StatusColumn: "status",
		DateColumns: map[contract.DateField]string{
			contract.DateFieldCreatedAt:     "criado_em",
			contract.DateFieldUpdatedAt:     "atualizado_em",
			contract.DateFieldScheduledDate: "vencimento",
		},
		Search:       []string{"tipo_despesa", "descricao", "numero_documento"},
		Orderable:    []string{"id", "criado_em", "vencimento", "valor"},
		Numeric:      []string{"valor"},
		Groupable:    []string{"tipo_despesa", "status", "pago", "vencimento"},
		DefaultOrder: "vencimento",
	},
	contract.DomainTransportadoras: {
		Domain:   contract.DomainTransportadoras,
		Table:    "transportadoras",
		IDColumn: "id",
		DateColumns: map[contract.DateField]string{
			contract.DateFieldCreatedAt: "criado_em",
			contract.DateFieldUpdatedAt: "atualizado_em",
		},
		Search:       []string{"razao_social", "cnpj", "cidade"},
		Orderable:    []string{"id", "razao_social", "criado_em", "frete_minimo"},
		Numeric:      []string{"frete_minimo"},
		Groupable:    []string{"uf", "ativa", "optante_simples"},
		DefaultOrder: "razao_social",
	},
	contract.DomainMonitoramento: {
		Domain:       contract.DomainMonitoramento,
		Table:        "entregas_monitoradas",
		IDColumn:     "id",
		StatusColumn: "status",
		DateColumns: map[contract.DateField]string{
			contract.DateFieldCreatedAt:     "criado_em",
			contract.DateFieldUpdatedAt:     "atualizado_em",
			contract.DateFieldScheduledDate: "data_agenda",
			contract.DateFieldDeliveryDate:  "data_entrega_prevista",
		},
		Search:       []string{"numero_nf", "cliente", "municipio"},
		Orderable:    []string{"id", "criado_em", "data_agenda", "data_entrega_prevista", "valor_nf"},
		Numeric:      []string{"valor_nf"},
		Groupable:    []string{"status", "transportadora_id", "uf_destino", "data_entrega_prevista"},
		DefaultOrder: "data_entrega_prevista",
	},
}

// Lookup returns the spec of a loadable domain.
func Lookup(d contract.Domain) (*DomainSpec, bool) {
	spec, ok := Registry[d]
	return spec, ok
}

// CanOrderBy includes the id column.
func (s *DomainSpec) CanOrderBy(col string) bool {
	return col == s.IDColumn || slices.Contains(s.Orderable, col)
}

func (s *DomainSpec) IsNumeric(col string) bool { return slices.Contains(s.Numeric, col) }

func (s *DomainSpec) CanGroupBy(col string) bool { return slices.Contains(s.Groupable, col) }

// HasColumn reports whether col is any column the spec exposes.
func (s *DomainSpec) HasColumn(col string) bool {
	if col == s.IDColumn || (s.StatusColumn != "" && col == s.StatusColumn) {
		return true
	}
	return s.CanOrderBy(col) || s.IsNumeric(col) || s.CanGroupBy(col) || slices.Contains(s.Search, col)
}

// IsDateColumn reports whether col holds dates, which makes its groups chronological.
func (s *DomainSpec) IsDateColumn(col string) bool {
	for _, c := range s.DateColumns {
		if c == col {
			return true
		}
	}
	return strings.HasPrefix(col, "data_") || col == "vencimento"
}
