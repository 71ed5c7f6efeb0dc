package parsers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxSyntaxErrors = 20

// Tabular parses delimited text with a header row.
type Tabular struct {
	MaxRows int
}

func (Tabular) Format() Format { return FormatTabular }

func (p Tabular) Parse(ctx context.Context, data []byte, category string) Record {
	cat := LookupCategory(category)
	rec := Record{Format: FormatTabular, Category: cat.Name}

	text := string(decodeText(data))
	delim, ok := detectDelimiter(sampleLines(text, 10))
	if !ok {
		delim = ','
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.Comment = '#'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		rec.diagnose(SeverityError, 0, "no header row")
		return rec
	}

	var records [][]string
	if comment := preambleHeader(text, delim); cat.Matches(header) == 0 && cat.Matches(comment) >= 2 {
		records = append(records, header)
		header = comment
	}

	syntaxErrors := 0
	for {
		cells, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			rec.diagnose(SeverityWarning, 0, pe.Error())
			if syntaxErrors++; syntaxErrors >= maxSyntaxErrors {
				rec.diagnose(SeverityError, 0, "too many syntax errors; remaining input ignored")
				break
			}
			continue
		}
		if err != nil {
			rec.diagnose(SeverityError, 0, err.Error())
			break
		}
		records = append(records, cells)
	}

	fillRows(ctx, &rec, cat, header, records, p.MaxRows)
	return rec
}

// fillRows keys each record by the header, validates required fields, and
// sets the record's confidence. Rows with missing fields are kept.
func fillRows(ctx context.Context, rec *Record, cat *Category, header []string, records [][]string, maxRows int) {
	keys := cat.KeyHeaders(header)
	required := cat.RequiredFor(keys)
	valid := 0

	for i, cells := range records {
		if i%1000 == 0 && ctx.Err() != nil {
			rec.diagnose(SeverityError, 0, "parsing cancelled")
			break
		}
		if maxRows > 0 && len(rec.Rows) == maxRows {
			rec.diagnose(SeverityWarning, 0, fmt.Sprintf("row limit %d reached; remaining rows ignored", maxRows))
			break
		}

		row := make(Row, 0, len(cells))
		for j, cell := range cells {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			key := columnKey(j)
			if j < len(keys) {
				key = keys[j]
			}
			row = append(row, Field{Key: key, Value: coerce(cell)})
		}
		if len(row) == 0 {
			continue
		}

		rec.Rows = append(rec.Rows, row)
		if missing := missingFields(row, required); len(missing) > 0 {
			rec.diagnose(SeverityWarning, len(rec.Rows),
				"missing required field(s): "+strings.Join(missing, ", "), missing...)
			continue
		}
		valid++
	}

	if len(rec.Rows) == 0 {
		rec.diagnose(SeverityWarning, 0, "no data rows")
	}
	rec.Confidence = Confidence(valid, len(rec.Rows))
}

func missingFields(row Row, required []string) []string {
	var missing []string
	for _, field := range required {
		if !row.Has(field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// preambleHeader returns the cells of the last # comment before the first
// data line. Genotype exports carry their column names there.
func preambleHeader(text string, delim rune) []string {
	var last string
	for line := range strings.Lines(text) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		last = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
	}
	if last == "" {
		return nil
	}

	cells := strings.Split(last, string(delim))
	if len(cells) < 2 {
		cells = strings.Fields(last)
	}
	return cells
}
