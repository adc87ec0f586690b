package contract

import (
	"sort"
	"strings"

	"mcp-frete-sistema/internal/common/validation"
)

// customFilterWhitelist lists, per data domain, the customFilters keys a caller may use and
// the scalar kind each expects. Keys ending in _min/_max are range bounds on the column
// named by the prefix.
var customFilterWhitelist = map[Domain]map[string]ScalarKind{
	DomainFretes: {
		"transportadora_id": KindString,
		"uf_destino":        KindString,
		"modalidade":        KindString,
		"cte_emitido":       KindBool,
		"valor_min":         KindNumber,
		"valor_max":         KindNumber,
	},
	DomainPedidos: {
		"cnpj_cliente":          KindString,
		"num_pedido":            KindString,
		"uf":                    KindString,
		"separado":              KindBool,
		"valor_min":             KindNumber,
		"data_entrega_prevista": KindDate,
	},
	DomainEntregas: {
		"transportadora_id": KindString,
		"uf_destino":        KindString,
		"agendada":          KindBool,
		"reagendada":        KindBool,
		"numero_nf":         KindString,
		"data_agenda":       KindDate,
	},
	DomainEmbarques: {
		"numero_embarque":   KindString,
		"transportadora_id": KindString,
		"tipo_carga":        KindString,
		"data_embarque":     KindDate,
	},
	DomainFinanceiro: {
		"tipo_despesa": KindString,
		"pago":         KindBool,
		"valor_min":    KindNumber,
		"valor_max":    KindNumber,
		"vencimento":   KindDate,
	},
	DomainTransportadoras: {
		"uf":              KindString,
		"cnpj":            KindString,
		"ativa":           KindBool,
		"optante_simples": KindBool,
	},
	DomainMonitoramento: {
		"transportadora_id":     KindString,
		"uf_destino":            KindString,
		"entregue":              KindBool,
		"atrasada":              KindBool,
		"numero_nf":             KindString,
		"data_entrega_prevista": KindDate,
	},
}

// CustomFilterKind returns the expected kind of key for domain d.
func CustomFilterKind(d Domain, key string) (ScalarKind, bool) {
	k, ok := customFilterWhitelist[d][key]
	return k, ok
}

// CustomFilterKeys returns the sorted whitelist for d.
func CustomFilterKeys(d Domain) []string {
	keys := make([]string, 0, len(customFilterWhitelist[d]))
	for k := range customFilterWhitelist[d] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CustomFilterColumn splits a filter key into the column it targets and the comparison
// operator: ">=" for _min, "<=" for _max and "=" otherwise.
func CustomFilterColumn(key string) (column, op string) {
	switch {
	case strings.HasSuffix(key, "_min"):
		return strings.TrimSuffix(key, "_min"), ">="
	case strings.HasSuffix(key, "_max"):
		return strings.TrimSuffix(key, "_max"), "<="
	default:
		return key, "="
	}
}

func validateCustomFilters(res *validation.ValidationResult, field string, d Domain, filters ScalarMap) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := filters[k]
		f := validation.JoinField(field, k)
		want, ok := CustomFilterKind(d, k)
		if !ok {
			res.Addf(f, CodeCustomFilterNotAllowed, "%q is not a filter of domain %s", k, d)
			continue
		}
		got := v.Kind()
		if got == want || (want == KindString && got == KindDate) {
			continue
		}
		res.Addf(f, CodeCustomFilterTypeMismatch, "%q expects %s, got %s", k, want, got)
	}
}
