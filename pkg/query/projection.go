// Package query builds the parameterized SELECT statements behind the list
// endpoints. The SQL it emits runs unchanged on PostgreSQL and SQLite.
package query

import "strings"

// ProjectionMap binds view names, the field names used in filters and
// sort parameters, to alias-qualified columns of one table.
type ProjectionMap struct {
	table    string
	alias    string
	byView   map[string]string
	byColumn map[string]string
	columns  []string
}

// NewProjectionMap starts a projection over table under alias.
func NewProjectionMap(table, alias string) *ProjectionMap {
	return &ProjectionMap{
		table:    table,
		alias:    alias,
		byView:   make(map[string]string),
		byColumn: make(map[string]string),
	}
}

// Project appends column to the select list under viewName. Projections
// are declared once at package init, so a repeated view name panics.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	if _, dup := p.byView[viewName]; dup {
		panic("query: duplicate projection " + viewName + " on " + p.table)
	}
	qualified := p.alias + "." + column
	p.byView[viewName] = qualified
	p.byColumn[column] = qualified
	p.columns = append(p.columns, qualified)
	return p
}

// From returns the FROM clause target, "table alias".
func (p *ProjectionMap) From() string {
	return p.table + " " + p.alias
}

// Column returns the qualified column for viewName. Unmapped names are
// returned as given, so callers must only pass names they control.
func (p *ProjectionMap) Column(viewName string) string {
	if col, ok := p.byView[viewName]; ok {
		return col
	}
	return viewName
}

// Resolve looks up a view name or raw column name taken from user input.
func (p *ProjectionMap) Resolve(name string) (string, bool) {
	if col, ok := p.byView[name]; ok {
		return col, true
	}
	col, ok := p.byColumn[name]
	return col, ok
}

// Columns returns the select list in projection order.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.columns, ", ")
}
