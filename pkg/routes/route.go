package routes

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/hodie-labs/ingest/pkg/openapi"
)

// Route binds an HTTP method and pattern to a handler. Routes without
// OpenAPI are served but left out of the document.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
	OpenAPI *openapi.Operation
}

// wildcards returns the names of the ServeMux wildcards in pattern, with
// any "..." suffix removed.
func wildcards(pattern string) []string {
	var names []string
	for {
		_, rest, ok := strings.Cut(pattern, "{")
		if !ok {
			return names
		}
		name, after, ok := strings.Cut(rest, "}")
		if !ok {
			return names
		}
		if name = strings.TrimSuffix(name, "..."); name != "$" {
			names = append(names, name)
		}
		pattern = after
	}
}

// operationID derives a stable camelCase id from method and path, such as
// "getUploadsIdContent" for GET /uploads/{id}/content.
func operationID(method, path string) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(method))
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		r := []rune(seg)
		r[0] = unicode.ToUpper(r[0])
		sb.WriteString(string(r))
	}
	return sb.String()
}
