// Package routes registers grouped HTTP routes on a ServeMux and describes
// them in an OpenAPI document.
package routes

import (
	"net/http"
	"slices"
	"strings"

	"github.com/hodie-labs/ingest/pkg/openapi"
)

// Group organizes routes under a common prefix with shared tags.
type Group struct {
	Prefix   string
	Tags     []string
	Schemas  map[string]*openapi.Schema
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		registerGroup(mux, "", group)
	}
}

func registerGroup(mux *http.ServeMux, parentPrefix string, group Group) {
	prefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+prefix+route.Pattern, route.Handler)
	}
	for _, child := range group.Children {
		registerGroup(mux, prefix, child)
	}
}

// Describe adds every documented route in groups to spec under basePath.
// Operations inherit group tags when they declare none, get an operationId
// derived from method and path when they lack one, and gain a string path
// parameter for each wildcard they leave undeclared. Group schemas are
// merged into the spec components.
func Describe(spec *openapi.Spec, basePath string, groups ...Group) {
	for _, group := range groups {
		describeGroup(spec, basePath, "", nil, group)
	}
}

func describeGroup(spec *openapi.Spec, basePath, parentPrefix string, parentTags []string, group Group) {
	prefix := parentPrefix + group.Prefix
	tags := group.Tags
	if len(tags) == 0 {
		tags = parentTags
	}

	for _, tag := range group.Tags {
		spec.AddTag(tag)
	}
	if len(group.Schemas) > 0 {
		spec.Components.AddSchemas(group.Schemas)
	}

	for _, route := range group.Routes {
		if route.OpenAPI == nil {
			continue
		}

		op := *route.OpenAPI
		if len(op.Tags) == 0 {
			op.Tags = tags
		}
		if op.OperationID == "" {
			op.OperationID = operationID(route.Method, prefix+route.Pattern)
		}
		op.Parameters = withPathParams(op.Parameters, prefix+route.Pattern)

		path := openAPIPath(basePath + prefix + route.Pattern)
		item, ok := spec.Paths[path]
		if !ok {
			item = &openapi.PathItem{}
			spec.Paths[path] = item
		}

		switch route.Method {
		case http.MethodGet:
			item.Get = &op
		case http.MethodPost:
			item.Post = &op
		case http.MethodPut:
			item.Put = &op
		case http.MethodDelete:
			item.Delete = &op
		}
	}

	for _, child := range group.Children {
		describeGroup(spec, basePath, prefix, tags, child)
	}
}

// withPathParams appends a string path parameter for each wildcard in
// pattern that params does not already declare. params is not modified.
func withPathParams(params []*openapi.Parameter, pattern string) []*openapi.Parameter {
	out := params
	for _, name := range wildcards(pattern) {
		declared := slices.ContainsFunc(params, func(p *openapi.Parameter) bool {
			return p.In == "path" && p.Name == name
		})
		if !declared {
			out = append(slices.Clip(out), openapi.PathParamString(name, ""))
		}
	}
	return out
}

// openAPIPath rewrites ServeMux wildcards ({key...}) into OpenAPI path parameters.
func openAPIPath(pattern string) string {
	if pattern == "" {
		return "/"
	}
	return strings.ReplaceAll(pattern, "...}", "}")
}
