package parsers

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Canonical category names.
const (
	CategoryLab       = "lab"
	CategoryGenetic   = "genetic"
	CategoryActivity  = "activity"
	CategorySleep     = "sleep"
	CategoryNutrition = "nutrition"
	CategoryVitals    = "vitals"
	CategoryGeneral   = "general"
)

// Category describes how rows of one kind of health data are keyed and validated.
// Synonyms maps each canonical field to the header spellings that mean it.
// The table is built once and never mutated.
type Category struct {
	Name     string
	Aliases  []string
	Synonyms map[string][]string
	Required []string
	order    []string
}

var categories = []*Category{
	{
		Name:    CategoryLab,
		Aliases: []string{"labs", "blood", "bloodwork", "blood work", "biomarkers", "lab results", "lab_results", "panel"},
		Synonyms: map[string][]string{
			"test":            {"test", "test name", "biomarker", "marker", "analyte", "component", "name", "parameter"},
			"value":           {"value", "result", "results", "measurement", "level", "reading", "amount"},
			"unit":            {"unit", "units", "uom", "unit of measure"},
			"reference_range": {"reference range", "ref range", "range", "normal range", "reference", "reference interval"},
			"flag":            {"flag", "abnormal", "status", "interpretation"},
			"date":            {"date", "collected", "collection date", "date collected", "test date", "drawn"},
		},
		Required: []string{"test", "value"},
		order:    []string{"test", "value", "unit", "reference_range", "flag", "date"},
	},
	{
		Name:    CategoryGenetic,
		Aliases: []string{"genetics", "dna", "genome", "genomic", "genotype", "23andme", "ancestry"},
		Synonyms: map[string][]string{
			"rsid":       {"rsid", "rs id", "snp", "snp id", "variant", "marker"},
			"chromosome": {"chromosome", "chr", "chrom"},
			"position":   {"position", "pos", "location", "bp"},
			"genotype":   {"genotype", "alleles", "allele", "result", "call"},
			"gene":       {"gene", "gene name", "symbol"},
		},
		Required: []string{"rsid", "genotype"},
		order:    []string{"rsid", "chromosome", "position", "genotype", "gene"},
	},
	{
		Name:    CategoryActivity,
		Aliases: []string{"activities", "fitness", "wearable", "steps", "exercise", "workout", "workouts"},
		Synonyms: map[string][]string{
			"date":           {"date", "day", "datetime", "timestamp", "start date"},
			"steps":          {"steps", "step count", "total steps"},
			"distance":       {"distance", "distance km", "km", "miles"},
			"calories":       {"calories", "calories burned", "kcal", "active calories", "energy"},
			"active_minutes": {"active minutes", "minutes active", "exercise minutes", "very active minutes"},
			"heart_rate":     {"heart rate", "avg heart rate", "average heart rate", "hr"},
		},
		Required: []string{"date"},
		order:    []string{"date", "steps", "distance", "calories", "active_minutes", "heart_rate"},
	},
	{
		Name:    CategorySleep,
		Aliases: []string{"sleep data", "sleep log", "rest"},
		Synonyms: map[string][]string{
			"date":       {"date", "day", "night", "date of sleep", "summary date"},
			"duration":   {"duration", "total sleep", "sleep duration", "minutes asleep", "time asleep", "hours", "total"},
			"efficiency": {"efficiency", "sleep efficiency"},
			"deep":       {"deep", "deep sleep", "deep minutes"},
			"rem":        {"rem", "rem sleep", "rem minutes"},
			"light":      {"light", "light sleep", "light minutes"},
			"awake":      {"awake", "time awake", "minutes awake"},
			"score":      {"score", "sleep score"},
		},
		Required: []string{"date", "duration"},
		order:    []string{"date", "duration", "efficiency", "deep", "rem", "light", "awake", "score"},
	},
	{
		Name:    CategoryNutrition,
		Aliases: []string{"diet", "food", "meals", "food log", "macros"},
		Synonyms: map[string][]string{
			"date":          {"date", "day", "time", "meal time"},
			"meal":          {"meal", "meal type"},
			"food":          {"food", "item", "food item", "description", "name"},
			"serving":       {"serving", "serving size", "quantity", "portion"},
			"calories":      {"calories", "kcal", "energy"},
			"protein":       {"protein", "protein g"},
			"carbohydrates": {"carbohydrates", "carbs", "carbs g", "carbohydrate"},
			"fat":           {"fat", "fat g", "total fat"},
		},
		Required: []string{"food"},
		order:    []string{"date", "meal", "food", "serving", "calories", "protein", "carbohydrates", "fat"},
	},
	{
		Name:    CategoryVitals,
		Aliases: []string{"vital", "vital signs", "blood pressure", "bp", "heart", "heart rate", "weight", "biometrics"},
		Synonyms: map[string][]string{
			"date":             {"date", "datetime", "timestamp", "time", "measured at"},
			"systolic":         {"systolic", "sys", "systolic bp"},
			"diastolic":        {"diastolic", "dia", "diastolic bp"},
			"heart_rate":       {"heart rate", "pulse", "hr", "bpm", "resting heart rate"},
			"temperature":      {"temperature", "temp", "body temperature"},
			"spo2":             {"spo2", "oxygen", "oxygen saturation", "o2 sat", "sp o2"},
			"respiratory_rate": {"respiratory rate", "respiration", "breaths"},
			"weight":           {"weight", "body weight", "mass"},
		},
		Required: []string{"date"},
		order:    []string{"date", "systolic", "diastolic", "heart_rate", "temperature", "spo2", "respiratory_rate", "weight"},
	},
	{
		Name:    CategoryGeneral,
		Aliases: []string{"", "other", "misc", "unknown", "unclassified"},
	},
}

var (
	categoryIndex = buildCategoryIndex()
	headerNoise   = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	nonAlnum      = regexp.MustCompile(`[^a-z0-9]+`)
)

func buildCategoryIndex() map[string]*Category {
	idx := make(map[string]*Category)
	for _, c := range categories {
		idx[c.Name] = c
		for _, alias := range c.Aliases {
			idx[normalizeHeader(alias)] = c
		}
	}
	return idx
}

// LookupCategory resolves a declared category or alias to its canonical
// entry. Unknown names resolve to the general category.
func LookupCategory(name string) *Category {
	if c, ok := categoryIndex[normalizeHeader(name)]; ok {
		return c
	}
	return categoryIndex[CategoryGeneral]
}

// Categories returns the canonical category names.
func Categories() []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}

// CanonicalField returns the canonical field a header means in this
// category, or false when no synonym matches.
func (c *Category) CanonicalField(header string) (string, bool) {
	h := normalizeHeader(header)
	if h == "" {
		return "", false
	}
	for _, field := range c.fieldOrder() {
		if h == normalizeHeader(field) || slices.Contains(c.Synonyms[field], h) {
			return field, true
		}
	}
	return "", false
}

// RequiredFor returns the fields a row must carry to count as valid.
// Categories without a required set treat every header column as required.
func (c *Category) RequiredFor(columns []string) []string {
	if len(c.Required) > 0 {
		return c.Required
	}
	return columns
}

// fieldOrder returns canonical fields in declaration order so synonym
// collisions such as "name" resolve predictably.
func (c *Category) fieldOrder() []string {
	if len(c.order) > 0 {
		return c.order
	}
	keys := make([]string, 0, len(c.Synonyms))
	for k := range c.Synonyms {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// KeyHeaders maps header cells to row keys. Canonical names are used once
// each; later duplicates and unmatched headers keep their literal text.
func (c *Category) KeyHeaders(headers []string) []string {
	keys := make([]string, len(headers))
	used := make(map[string]bool, len(headers))

	for i, h := range headers {
		literal := strings.TrimSpace(h)
		if literal == "" {
			literal = columnKey(i)
		}
		key := literal
		if field, ok := c.CanonicalField(h); ok && !used[field] {
			key = field
		}
		for used[key] {
			key = key + "_" + columnKey(i)
		}
		used[key] = true
		keys[i] = key
	}
	return keys
}

// Matches counts the headers that resolve to canonical fields.
func (c *Category) Matches(headers []string) int {
	n := 0
	for _, h := range headers {
		if _, ok := c.CanonicalField(h); ok {
			n++
		}
	}
	return n
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = headerNoise.ReplaceAllString(s, " ")
	s = nonAlnum.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func columnKey(i int) string {
	return "column_" + strconv.Itoa(i+1)
}
