package signing

import "strings"

// HeaderField is one resolved (name, value) pair to be folded into the
// canonical string, in the order the signer/verifier agreed on.
type HeaderField struct {
	Name  string
	Value string
}

// CanonicalString builds the exact five-step canonical string of
// spec.md §4.1:
//
//  1. lowercased HTTP method
//  2. request path (no query string)
//  3. URL-encoded query string, omitted entirely if absent
//  4. one "lowercase(name): value" line per signed header, in order
//  5. no trailing newline after the final header
func CanonicalString(method, path, rawQuery string, headers []HeaderField) string {
	var b strings.Builder

	b.WriteString(strings.ToLower(method))
	b.WriteByte('\n')
	b.WriteString(path)

	if rawQuery != "" {
		b.WriteByte('\n')
		b.WriteString(encodeQuerySpaces(rawQuery))
	}

	for _, h := range headers {
		b.WriteByte('\n')
		b.WriteString(strings.ToLower(h.Name))
		b.WriteString(": ")
		b.WriteString(h.Value)
	}

	return b.String()
}

// encodeQuerySpaces ensures literal spaces in a query string are
// represented as %20, per spec.md §4.1 step 4. Query strings arriving
// from an http.Request are already wire-encoded; this only guards
// callers that build rawQuery by hand from unescaped values.
func encodeQuerySpaces(rawQuery string) string {
	if !strings.Contains(rawQuery, " ") {
		return rawQuery
	}
	return strings.ReplaceAll(rawQuery, " ", "%20")
}
