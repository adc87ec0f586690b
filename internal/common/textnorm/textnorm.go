// Package textnorm folds Portuguese and English text for keyword matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips diacritics, so "Mês" and "mes" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Tokens splits folded text on anything that is not a letter or digit.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a o e as os um uma uns umas de da do das dos em na no nas nos por para pra com sem
		que qual quais quem como quando onde ao aos se sao ser esta estao este esse essa isso
		isto meu minha meus minhas seu sua seus suas me mim voce voces eu nos ele ela eles
		elas ja mais menos muito pouco tem ter foi foram ha hoje ontem amanha ate desde entre
		the an and or of to in on for with from by is are was were be this that these those
		what which who how when where me my our your all any some
		mostrar mostre listar liste ver veja quero preciso gostaria favor poderia pode`) {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether a folded token carries no topic.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Keywords returns the distinct topic tokens of s in order of first appearance, at most max
// (no cap when max <= 0).
func Keywords(s string, max int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range Tokens(s) {
		if len([]rune(tok)) < 3 || IsStopword(tok) || isNumber(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
