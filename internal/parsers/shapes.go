package parsers

import (
	"context"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
)

// shape describes a known export layout: where its entries live and which
// JSONPath expressions, tried in order, yield each canonical field.
type shape struct {
	name     string
	category string
	items    string
	fields   []shapeField
	required []string
}

type shapeField struct {
	key   string
	paths []string
}

var knownShapes = []shape{
	{
		name:     "fitbit_steps",
		category: CategoryActivity,
		items:    `$["activities-steps"]`,
		fields: []shapeField{
			{key: "date", paths: []string{"$.dateTime"}},
			{key: "steps", paths: []string{"$.value"}},
		},
		required: []string{"date", "steps"},
	},
	{
		name:     "fitbit_heart",
		category: CategoryVitals,
		items:    `$["activities-heart"]`,
		fields: []shapeField{
			{key: "date", paths: []string{"$.dateTime"}},
			{key: "heart_rate", paths: []string{"$.value.restingHeartRate"}},
		},
		required: []string{"date", "heart_rate"},
	},
	{
		name:     "fitbit_sleep",
		category: CategorySleep,
		items:    "$.sleep",
		fields: []shapeField{
			{key: "date", paths: []string{"$.dateOfSleep"}},
			{key: "duration", paths: []string{"$.minutesAsleep"}},
			{key: "efficiency", paths: []string{"$.efficiency"}},
			{key: "awake", paths: []string{"$.minutesAwake"}},
		},
		required: []string{"date", "duration"},
	},
	{
		name:     "oura_sleep",
		category: CategorySleep,
		items:    "$.sleep",
		fields: []shapeField{
			{key: "date", paths: []string{"$.summary_date"}},
			{key: "duration", paths: []string{"$.total"}},
			{key: "efficiency", paths: []string{"$.efficiency"}},
			{key: "deep", paths: []string{"$.deep"}},
			{key: "rem", paths: []string{"$.rem"}},
			{key: "light", paths: []string{"$.light"}},
			{key: "score", paths: []string{"$.score"}},
		},
		required: []string{"date", "duration"},
	},
	{
		name:     "heart_rate_series",
		category: CategoryVitals,
		items:    "$.heart_rate",
		fields: []shapeField{
			{key: "date", paths: []string{"$.timestamp", "$.time", "$.dateTime"}},
			{key: "heart_rate", paths: []string{"$.bpm", "$.value"}},
		},
		required: []string{"date", "heart_rate"},
	},
	{
		name:     "lab_results",
		category: CategoryLab,
		items:    "$.results",
		fields: []shapeField{
			{key: "test", paths: []string{"$.test", "$.name", "$.analyte"}},
			{key: "value", paths: []string{"$.value", "$.result"}},
			{key: "unit", paths: []string{"$.unit", "$.units"}},
			{key: "reference_range", paths: []string{"$.reference_range", "$.range"}},
			{key: "flag", paths: []string{"$.flag"}},
			{key: "date", paths: []string{"$.date", "$.collected"}},
		},
		required: []string{"test", "value"},
	},
	{
		name:     "food_log",
		category: CategoryNutrition,
		items:    "$.foods",
		fields: []shapeField{
			{key: "date", paths: []string{"$.date", "$.logDate"}},
			{key: "food", paths: []string{"$.name", "$.food", "$.loggedFood.name"}},
			{key: "calories", paths: []string{"$.calories", "$.nutritionalValues.calories"}},
			{key: "protein", paths: []string{"$.protein", "$.nutritionalValues.protein"}},
			{key: "carbohydrates", paths: []string{"$.carbs", "$.nutritionalValues.carbs"}},
			{key: "fat", paths: []string{"$.fat", "$.nutritionalValues.fat"}},
		},
		required: []string{"food"},
	},
}

type compiledShape struct {
	shape
	items  gval.Evaluable
	fields [][]gval.Evaluable
}

var compiledShapes = compileShapes(knownShapes)

func compileShapes(shapes []shape) []compiledShape {
	out := make([]compiledShape, len(shapes))
	for i, s := range shapes {
		out[i] = compiledShape{shape: s, items: mustPath(s.items)}
		for _, f := range s.fields {
			paths := make([]gval.Evaluable, len(f.paths))
			for j, p := range f.paths {
				paths[j] = mustPath(p)
			}
			out[i].fields = append(out[i].fields, paths)
		}
	}
	return out
}

func mustPath(p string) gval.Evaluable {
	eval, err := jsonpath.New(p)
	if err != nil {
		panic("parsers: invalid shape path " + p + ": " + err.Error())
	}
	return eval
}

// shapeMatch is the result of applying one shape to a document.
type shapeMatch struct {
	shape *compiledShape
	rows  []Row
	valid int
}

// extract applies s to doc. A shape matches when its item path resolves to
// a list with at least one entry carrying every required field.
func (s *compiledShape) extract(ctx context.Context, doc any) (shapeMatch, bool) {
	raw, err := s.items(ctx, doc)
	if err != nil {
		return shapeMatch{}, false
	}
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return shapeMatch{}, false
	}

	m := shapeMatch{shape: s}
	for _, item := range items {
		var row Row
		for i, f := range s.shape.fields {
			if v, ok := firstResolved(ctx, s.fields[i], item); ok {
				row.Set(f.key, v)
			}
		}
		if len(missingFields(row, s.required)) == 0 {
			m.valid++
		}
		m.rows = append(m.rows, row)
	}
	return m, m.valid > 0
}

func firstResolved(ctx context.Context, paths []gval.Evaluable, item any) (any, bool) {
	for _, p := range paths {
		v, err := p(ctx, item)
		if err == nil && v != nil {
			return v, true
		}
	}
	return nil, false
}

// bestShape returns the shape with the most valid entries, preferring the
// declared category on ties.
func bestShape(ctx context.Context, doc any, category string) (shapeMatch, bool) {
	var (
		best  shapeMatch
		found bool
	)
	for i := range compiledShapes {
		m, ok := compiledShapes[i].extract(ctx, doc)
		if !ok {
			continue
		}
		if !found || m.valid > best.valid ||
			(m.valid == best.valid && m.shape.category == category && best.shape.category != category) {
			best, found = m, true
		}
	}
	return best, found
}
