package prompts

import "github.com/hodie-labs/ingest/internal/parsers"

const preamble = `You are a health data integration analyst. You receive a preview of a file a user uploaded: the declared category, the parser's detected format and confidence, the field keys found, and the first rows of normalized data.

Decide which target collection the rows belong in and how each source field should be named in that collection. Prefer the collection implied by the declared category unless the data clearly says otherwise. Lower your confidence when fields are ambiguous, units are missing, or the parser reported many diagnostics.`

const labInstructions = `The file is expected to hold laboratory results. Each row should name a test or analyte and a measured value. Map unit and reference range columns when present, and flag values whose units are missing or inconsistent across rows.`

const geneticInstructions = `The file is expected to hold genotype calls, typically from a consumer genetics export. Each row should carry a variant identifier (rsid), a genotype, and usually a chromosome and position. Flag rows whose genotype is not composed of nucleotide letters.`

const activityInstructions = `The file is expected to hold activity tracking data from a wearable or fitness app. Rows are usually daily or per-session summaries with a date and measures such as steps, distance, calories, or active minutes.`

const sleepInstructions = `The file is expected to hold sleep tracking data. Rows are usually one night each, with a date and a duration, and may include sleep stages, efficiency, or a score. Note the duration unit if it cannot be inferred.`

const nutritionInstructions = `The file is expected to hold a food or nutrition log. Each row should name a food and may carry serving size, calories, and macronutrients. Map meal or time columns when present.`

const vitalsInstructions = `The file is expected to hold vital sign measurements such as blood pressure, heart rate, temperature, oxygen saturation, or weight. Each row should carry a date or timestamp. Split combined blood pressure readings (120/80) into systolic and diastolic when mapping.`

const generalInstructions = `The uploader did not declare a specific category. Identify the kind of health data from the field names and values. If the data does not fit any collection, use unclassified_metrics and ask a clarifying question that would let the user pick a category.`

var instructions = map[string]string{
	parsers.CategoryLab:       labInstructions,
	parsers.CategoryGenetic:   geneticInstructions,
	parsers.CategoryActivity:  activityInstructions,
	parsers.CategorySleep:     sleepInstructions,
	parsers.CategoryNutrition: nutritionInstructions,
	parsers.CategoryVitals:    vitalsInstructions,
	parsers.CategoryGeneral:   generalInstructions,
}

// DefaultInstructions returns the built-in instructions for a category.
// Unknown categories get the general instructions.
func DefaultInstructions(category string) string {
	text, ok := instructions[parsers.LookupCategory(category).Name]
	if !ok {
		text = generalInstructions
	}
	return preamble + "\n\n" + text
}
