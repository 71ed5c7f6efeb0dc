package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hodie-labs/ingest/internal/parsers"
	"github.com/hodie-labs/ingest/internal/prompts"
)

// compose builds the collaborator prompt: category instructions plus the
// response specification as the system message, and a bounded preview of
// the record as the user message.
func (in *Interpreter) compose(ctx context.Context, req Request) Prompt {
	category := resolveCategory(req.Record, req.Category)

	instructions := prompts.DefaultInstructions(category)
	if in.instructions != nil {
		text, err := in.instructions.Instructions(ctx, category)
		if err != nil {
			in.logger.Warn("instruction override unavailable, using default",
				"category", category,
				"error", err,
			)
		} else {
			instructions = text
		}
	}

	return Prompt{
		System: instructions + "\n\n" + prompts.Spec(),
		User:   preview(req, category, in.previewRows),
	}
}

type previewDoc struct {
	FileName    string               `json:"file_name"`
	Category    string               `json:"category"`
	Format      parsers.Format       `json:"format"`
	Confidence  int                  `json:"parser_confidence"`
	TotalRows   int                  `json:"total_rows"`
	Fields      []string             `json:"fields"`
	Rows        []parsers.Row        `json:"rows"`
	Diagnostics []parsers.Diagnostic `json:"diagnostics,omitempty"`
}

const maxPreviewDiagnostics = 10

func preview(req Request, category string, rows int) string {
	rec := req.Record
	doc := previewDoc{
		FileName:   req.FileName,
		Category:   category,
		Format:     rec.Format,
		Confidence: rec.Confidence,
		TotalRows:  len(rec.Rows),
		Fields:     fieldKeys(rec),
		Rows:       rec.Rows[:min(rows, len(rec.Rows))],
	}
	if n := min(maxPreviewDiagnostics, len(rec.Diagnostics)); n > 0 {
		doc.Diagnostics = rec.Diagnostics[:n]
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		body = []byte("{}")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Map the following %s file to the target collections.\n\n", category)
	b.WriteString("Upload preview:\n")
	b.Write(body)
	return b.String()
}

func fieldKeys(rec parsers.Record) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, row := range rec.Rows {
		for _, f := range row {
			if !seen[f.Key] {
				seen[f.Key] = true
				keys = append(keys, f.Key)
			}
		}
	}
	return keys
}
