package prompts

const responseSpec = `Respond with a JSON object matching this exact structure:

{
  "mappings": [
    {
      "target_collection": "<collection>",
      "field_mappings": {"<source field>": "<target field>"},
      "confidence": 0,
      "clarifying_questions": [],
      "recommendations": []
    }
  ]
}

Field constraints:
- target_collection: One of lab_results, genetic_markers, activity_logs,
  sleep_logs, nutrition_logs, vital_signs, unclassified_metrics.
- field_mappings: Every source field you can place, keyed by the field
  name exactly as it appears in the preview. Values are snake_case
  target field names.
- confidence: Integer from 0 to 100 reflecting how certain the mapping is.
- clarifying_questions: Questions for the uploader when the data is
  ambiguous. Empty array when nothing is unclear.
- recommendations: Short actionable notes about data quality or
  follow-up review. Empty array when there are none.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Use more than one mapping only when the rows clearly split across
  collections
- Never invent fields that are not in the preview`

// Spec returns the response specification appended to every prompt.
func Spec() string {
	return responseSpec
}
