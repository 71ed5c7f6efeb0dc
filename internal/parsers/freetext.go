package parsers

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const (
	maxRawContent = 4000
	maxKeywords   = 25
)

var (
	measurementLine = regexp.MustCompile(
		`^\s*([A-Za-z][A-Za-z0-9 ,/%'.-]*?)\s*(?:[:=]\s*|\s+)` +
			`([<>]?-?\d+(?:\.\d+)?(?:/\d+)?)` +
			`(?:\s*([A-Za-zµμ%°][A-Za-z0-9µμ%°/^.]*))?` +
			`(?:\s*\(?\s*(?:(?i:ref(?:erence)?(?:\s*range)?|range|normal)\s*:?\s*)?` +
			`(\d+(?:\.\d+)?\s*-\s*\d+(?:\.\d+)?|[<>]=?\s*\d+(?:\.\d+)?)\s*\)?)?\s*$`)

	measurementToken = regexp.MustCompile(
		`(?i)(-?\d+(?:\.\d+)?)\s*(%|°[cf]\b|(?:mg/dl|mmol/l|g/dl|ng/ml|pg/ml|iu/l|u/l|µg/dl|mcg|bpm|mmhg|kg|lbs?|kcal|cal|steps|hours?|hrs?|min(?:utes)?)\b)`)

	keywordVocabulary = buildVocabulary()
)

// FreeText matches "label value unit (range)" lines. Lines that do not
// match are gathered into a single raw-content row.
type FreeText struct {
	MaxRows int
}

func (FreeText) Format() Format { return FormatFreeText }

func (p FreeText) Parse(ctx context.Context, data []byte, category string) Record {
	cat := LookupCategory(category)
	rec := Record{Format: FormatFreeText, Category: cat.Name}
	parseText(ctx, &rec, cat, string(decodeText(data)), p.MaxRows)
	return rec
}

// parseText fills rec from plain text. Confidence is matched lines over
// non-empty lines.
func parseText(ctx context.Context, rec *Record, cat *Category, text string, maxRows int) {
	var (
		nonEmpty  int
		matched   int
		unmatched []string
	)

	nameKey := fieldKey(cat, "name")
	valueKey := fieldKey(cat, "value")
	unitKey := fieldKey(cat, "unit")
	rangeKey := fieldKey(cat, "reference_range")

	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		nonEmpty++
		if nonEmpty%1000 == 0 && ctx.Err() != nil {
			rec.diagnose(SeverityError, 0, "parsing cancelled")
			break
		}

		m := measurementLine.FindStringSubmatch(line)
		if m == nil || (maxRows > 0 && len(rec.Rows) >= maxRows) {
			unmatched = append(unmatched, line)
			continue
		}

		row := Row{
			{Key: nameKey, Value: strings.TrimSpace(m[1])},
			{Key: valueKey, Value: coerce(m[2])},
		}
		if m[3] != "" {
			row.Set(unitKey, m[3])
		}
		if m[4] != "" {
			row.Set(rangeKey, strings.Join(strings.Fields(m[4]), ""))
		}
		rec.Rows = append(rec.Rows, row)
		matched++
	}

	if nonEmpty == 0 {
		rec.diagnose(SeverityWarning, 0, "no text content")
		return
	}

	if len(unmatched) > 0 {
		raw := strings.Join(unmatched, "\n")
		rec.Rows = append(rec.Rows, Row{
			{Key: "raw_content", Value: truncateRunes(raw, maxRawContent)},
			{Key: "keywords", Value: extractKeywords(raw)},
			{Key: "measurements", Value: extractMeasurements(raw)},
		})
		rec.diagnose(SeverityInfo, 0, fmt.Sprintf(
			"%d of %d lines did not match a measurement pattern and were kept as raw content",
			len(unmatched), nonEmpty))
	}

	rec.Confidence = Confidence(matched, nonEmpty)
}

// fieldKey returns the category's canonical name for a generic key.
func fieldKey(cat *Category, generic string) string {
	if field, ok := cat.CanonicalField(generic); ok {
		return field
	}
	return generic
}

func extractKeywords(text string) []string {
	padded := " " + normalizeHeader(text) + " "
	found := []string{}
	for _, term := range keywordVocabulary {
		if strings.Contains(padded, " "+term+" ") {
			found = append(found, term)
			if len(found) == maxKeywords {
				break
			}
		}
	}
	return found
}

func extractMeasurements(text string) []string {
	found := []string{}
	for _, m := range measurementToken.FindAllStringSubmatch(text, 50) {
		found = append(found, m[1]+" "+m[2])
	}
	return found
}

var healthTerms = []string{
	"glucose", "cholesterol", "ldl", "hdl", "triglycerides", "hemoglobin", "a1c",
	"insulin", "vitamin", "ferritin", "creatinine", "tsh", "cortisol", "testosterone",
	"blood pressure", "pulse", "sleep", "steps", "calories", "protein", "weight",
	"genotype", "variant",
}

func buildVocabulary() []string {
	seen := make(map[string]bool)
	for _, term := range healthTerms {
		seen[term] = true
	}
	for _, c := range categories {
		if c.Name != CategoryGeneral {
			seen[c.Name] = true
		}
		for _, synonyms := range c.Synonyms {
			for _, s := range synonyms {
				if len(s) > 3 {
					seen[s] = true
				}
			}
		}
	}

	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	slices.Sort(terms)
	return terms
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
