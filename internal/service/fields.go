package service

import "strings"

// NormalizeFields flattens raw element tokens into the upstream "elements" value.
// Each token is split on commas, pieces are trimmed, empty pieces dropped, and the
// rest joined with commas in input order. Duplicates are kept. "" means no restriction.
func NormalizeFields(fields []string) string {
	var pieces []string
	for _, token := range fields {
		for _, p := range strings.Split(token, ",") {
			if p = strings.TrimSpace(p); p != "" {
				pieces = append(pieces, p)
			}
		}
	}
	return strings.Join(pieces, ",")
}
