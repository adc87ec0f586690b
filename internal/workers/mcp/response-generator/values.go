package responsegenerator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"mcp-frete-sistema/internal/common/textnorm"
)

var (
	currencyPrefixes = []string{"valor", "preco", "total"}
	brPrinter        = message.NewPrinter(language.BrazilianPortuguese)
)

func isCurrencyField(name string) bool {
	folded := textnorm.Fold(name)
	for _, p := range currencyPrefixes {
		if strings.HasPrefix(folded, p) {
			return true
		}
	}
	return false
}

func isCNPJField(name string) bool {
	return strings.Contains(textnorm.Fold(name), "cnpj")
}

// formatBRL renders v as Brazilian reais, e.g. R$ 1.234,50.
func formatBRL(v float64) string {
	return brPrinter.Sprintf("R$ %.2f", v)
}

func formatCount(n int) string {
	return brPrinter.Sprintf("%d", n)
}

// maskCNPJ formats the 14 digits of a CNPJ as 00.000.000/0000-00. Anything else is returned
// unchanged.
func maskCNPJ(s string) string {
	digits := make([]byte, 0, 14)
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) != 14 {
		return s
	}
	d := string(digits)
	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
}

// formatValue renders one record cell for display.
func formatValue(field string, v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		if isCNPJField(field) {
			return maskCNPJ(x)
		}
		if isCurrencyField(field) {
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return formatBRL(f)
			}
		}
		return x
	case float64:
		if isCurrencyField(field) {
			return formatBRL(x)
		}
		if isCNPJField(field) {
			return maskCNPJ(strconv.FormatFloat(x, 'f', 0, 64))
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return formatValue(field, f)
		}
		return x.String()
	case int:
		return formatValue(field, float64(x))
	case int64:
		return formatValue(field, float64(x))
	case bool:
		if x {
			return "sim"
		}
		return "não"
	case map[string]interface{}, []interface{}:
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(raw)
	default:
		return fmt.Sprint(x)
	}
}
