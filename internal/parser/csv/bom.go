package csv

import "strings"

const utf8BOM = "\uFEFF"

// NormalizeHeader canonicalizes header names in place: the UTF-8 BOM is
// stripped from the first cell, names are trimmed and lowercased, and inner
// spaces become underscores.
func NormalizeHeader(headers []string) []string {
	for i, h := range headers {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		h = strings.ToLower(strings.TrimSpace(h))
		headers[i] = strings.ReplaceAll(h, " ", "_")
	}
	return headers
}
