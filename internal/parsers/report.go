package parsers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// reportConfidenceCap bounds the confidence of values read from report text.
const reportConfidenceCap = 25

const manualReview = "manual review recommended"

// TextExtractor pulls plain text out of a report document.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// CommandExtractor runs a program that reads the document on stdin and
// writes its text to stdout, such as "pdftotext - -".
type CommandExtractor struct {
	Path string
	Args []string
}

// NewCommandExtractor splits command on whitespace into a program and its arguments.
func NewCommandExtractor(command string) (*CommandExtractor, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New("extractor command is empty")
	}
	return &CommandExtractor{Path: parts[0], Args: parts[1:]}, nil
}

func (c *CommandExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", c.Path, err, msg)
		}
		return "", fmt.Errorf("%s: %w", c.Path, err)
	}
	return stdout.String(), nil
}

// Report handles fixed-layout documents. It reads the page count itself and
// leaves text extraction to a collaborator. Results are always low
// confidence and flagged for manual review.
type Report struct {
	Extractor TextExtractor
	MaxRows   int
}

func (Report) Format() Format { return FormatReport }

func (p Report) Parse(ctx context.Context, data []byte, category string) Record {
	cat := LookupCategory(category)
	rec := Record{Format: FormatReport, Category: cat.Name, Meta: map[string]any{}}

	pages, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		rec.diagnose(SeverityWarning, 0, "could not read report structure: "+err.Error())
	} else {
		rec.Meta["pages"] = pages
	}
	rec.diagnose(SeverityInfo, 0, manualReview)

	if p.Extractor == nil {
		rec.diagnose(SeverityInfo, 0, "no text extractor configured")
		rec.Rows = []Row{placeholderRow(pages)}
		return rec
	}

	text, err := p.Extractor.ExtractText(ctx, data)
	if err != nil || strings.TrimSpace(text) == "" {
		msg := "extracted text is empty"
		if err != nil {
			msg = "text extraction failed: " + err.Error()
		}
		rec.diagnose(SeverityWarning, 0, msg)
		rec.Rows = []Row{placeholderRow(pages)}
		return rec
	}

	parseText(ctx, &rec, cat, text, p.MaxRows)
	rec.Confidence = min(rec.Confidence, reportConfidenceCap)
	return rec
}

func placeholderRow(pages int) Row {
	return Row{
		{Key: "pages", Value: pages},
		{Key: "status", Value: "pending_review"},
	}
}
