package graph

import "strings"

// SanitizeRelType normalizes a relationship type for use in Cypher.
// Each rune outside [A-Za-z0-9_] is replaced with an underscore and the
// result is uppercased, so "is a" becomes "IS_A" and "Uses!!" becomes
// "USES__".
//
// Relationship types cannot be bound as query parameters in Cypher, so the
// sanitized value is interpolated into the query text. Restricting the
// charset this way is what makes that interpolation safe.
func SanitizeRelType(relType string) string {
	var b strings.Builder
	b.Grow(len(relType))
	for _, r := range relType {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
