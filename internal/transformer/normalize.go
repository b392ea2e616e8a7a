package transformer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are stripped from the end of company names. Longer forms
// are listed first.
var legalSuffixes = []string{
	" INCORPORATED", " CORPORATION", " ASSOCIATION", " ASSOCIATES",
	" HOLDINGS", " HOLDING", " LIMITED", " COMPANY", " GROUP",
	" L.L.C.", " L.L.C", " LLC.", " INC.", " CORP.", " P.C.", " CO.",
	" PLLC", " CORP", " LLC", " INC", " LTD", " PLC", " LLP",
	" LP", " PA", " PC", " CO",
}

var stopWords = map[string]struct{}{"THE": {}, "A": {}, "AN": {}}

func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// NormalizeCompany canonicalizes an establishment name for matching across
// agencies. It folds accents, uppercases, strips trailing legal suffixes
// until none remain, replaces punctuation with spaces and drops articles.
// The empty string means no usable name.
func NormalizeCompany(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if folded, _, err := transform.String(foldAccents(), name); err == nil {
		name = folded
	}
	name = strings.ToUpper(name)

	for {
		trimmed := false
		for _, suf := range legalSuffixes {
			if strings.HasSuffix(name, suf) {
				name = strings.TrimSpace(strings.TrimSuffix(name, suf))
				trimmed = true
				break
			}
		}
		if !trimmed {
			break
		}
	}

	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return ' '
	}, name)

	words := strings.Fields(name)
	out := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; !stop {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}
