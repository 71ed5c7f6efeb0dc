package interpreter

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hodie-labs/ingest/internal/parsers"
)

// Target collections.
const (
	CollectionLabResults     = "lab_results"
	CollectionGeneticMarkers = "genetic_markers"
	CollectionActivityLogs   = "activity_logs"
	CollectionSleepLogs      = "sleep_logs"
	CollectionNutritionLogs  = "nutrition_logs"
	CollectionVitalSigns     = "vital_signs"
	CollectionUnclassified   = "unclassified_metrics"
)

// Baseline confidences.
const (
	RoutedConfidence   = 50
	FallbackConfidence = 25
)

// manualReviewThreshold is the parser confidence below which the baseline
// recommends a human look at the upload.
const manualReviewThreshold = 50

var routes = map[string]string{
	parsers.CategoryLab:       CollectionLabResults,
	parsers.CategoryGenetic:   CollectionGeneticMarkers,
	parsers.CategoryActivity:  CollectionActivityLogs,
	parsers.CategorySleep:     CollectionSleepLogs,
	parsers.CategoryNutrition: CollectionNutritionLogs,
	parsers.CategoryVitals:    CollectionVitalSigns,
}

// Collections returns every collection a mapping may target.
func Collections() []string {
	return append(slices.Sorted(maps.Values(routes)), CollectionUnclassified)
}

// IsCollection reports whether name is a known target collection.
func IsCollection(name string) bool {
	return name == CollectionUnclassified || slices.Contains(slices.Collect(maps.Values(routes)), name)
}

// Route returns the collection for a category, or the unclassified
// collection when the category has no route.
func Route(category string) (string, bool) {
	c, ok := routes[parsers.LookupCategory(category).Name]
	if !ok {
		return CollectionUnclassified, false
	}
	return c, true
}

// resolveCategory prefers the declared category and falls back to what
// the parser detected when the declaration says nothing specific.
func resolveCategory(rec parsers.Record, declared string) string {
	name := parsers.LookupCategory(declared).Name
	if name == parsers.CategoryGeneral && rec.Category != "" {
		return parsers.LookupCategory(rec.Category).Name
	}
	return name
}

// Baseline maps a record with the fixed category routing table. It never
// fails and always yields exactly one mapping.
func Baseline(rec parsers.Record, declared string) MappingResult {
	category := resolveCategory(rec, declared)
	collection, routed := Route(category)

	m := MappingResult{
		Collection:          collection,
		Fields:              identityFields(rec),
		Confidence:          FallbackConfidence,
		ClarifyingQuestions: []string{},
		Recommendations:     []string{},
		Source:              SourceBaseline,
	}

	if routed {
		m.Confidence = RoutedConfidence
	} else {
		m.ClarifyingQuestions = append(m.ClarifyingQuestions,
			fmt.Sprintf("Which kind of health data is in this file? Known categories: %s.",
				strings.Join(slices.Sorted(maps.Keys(routes)), ", ")))
	}

	if rec.Confidence < manualReviewThreshold {
		m.Recommendations = append(m.Recommendations,
			fmt.Sprintf("Manual review recommended: only %d%% of rows passed validation.", rec.Confidence))
	}

	return m
}

// identityFields maps every field key seen in the record to itself.
func identityFields(rec parsers.Record) map[string]string {
	fields := make(map[string]string)
	for _, row := range rec.Rows {
		for _, f := range row {
			fields[f.Key] = f.Key
		}
	}
	return fields
}
