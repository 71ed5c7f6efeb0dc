package openapi

import "maps"

// NewComponents creates Components with shared schemas and error responses.
func NewComponents() *Components {
	return &Components{
		Schemas: map[string]*Schema{
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: file_name,-received_at"},
				},
			},
		},
		Responses: map[string]*Response{
			"BadRequest":           errorResponse("Invalid request", nil),
			"NotFound":             errorResponse("Resource not found", nil),
			"Conflict":             errorResponse("Resource conflict", nil),
			"UnsupportedMediaType": errorResponse("File format not recognized", nil),
			"TooManyRequests": withRetryAfter(errorResponse("Daily upload quota exhausted", map[string]*Schema{
				"count":     {Type: "integer", Description: "Uploads admitted today"},
				"limit":     {Type: "integer", Description: "Daily upload limit"},
				"remaining": {Type: "integer", Description: "Uploads left today"},
				"resets_at": {Type: "string", Format: "date-time", Description: "Start of the next quota day"},
			}), "Seconds until the quota day resets"),
			"ServiceUnavailable": withRetryAfter(
				errorResponse("A backing store is temporarily unavailable", nil),
				"Seconds to wait before retrying",
			),
			"UnprocessableEntity": errorResponse("File could not be parsed", map[string]*Schema{
				"diagnostics": {Type: "array", Items: &Schema{Type: "object"}},
			}),
		},
	}
}

// errorResponse builds a JSON error response with an "error" message
// plus any extra properties.
func errorResponse(description string, extra map[string]*Schema) *Response {
	props := map[string]*Schema{
		"error": {Type: "string", Description: "Error message"},
	}
	maps.Copy(props, extra)

	return &Response{
		Description: description,
		Content:     jsonContent(&Schema{Type: "object", Properties: props, Required: []string{"error"}}),
	}
}

func withRetryAfter(r *Response, description string) *Response {
	r.Headers = map[string]*Header{
		"Retry-After": {Description: description, Schema: &Schema{Type: "integer"}},
	}
	return r
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// AddResponses merges the given responses into the component responses.
func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}
