// Package parsers turns uploaded health files into a format-independent Record.
//
// Parsing never fails on malformed input. Problems are reported as
// diagnostics and reflected in the record's confidence; the only error a
// caller sees is ErrUnsupportedFormat, raised before any parser runs.
package parsers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Format identifies which parser handles a file.
type Format int

const (
	FormatUnknown Format = iota
	FormatTabular
	FormatStructured
	FormatFreeText
	FormatReport
	FormatMarkup
)

var formatNames = map[Format]string{
	FormatUnknown:    "unknown",
	FormatTabular:    "tabular",
	FormatStructured: "structured",
	FormatFreeText:   "free_text",
	FormatReport:     "report",
	FormatMarkup:     "markup",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFormat returns the Format named by s.
func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if name == s {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown format %q", s)
}

// Severity grades a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one validation message. Row is the 1-based data row it
// refers to, or 0 for messages about the file as a whole.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Row      int      `json:"row,omitempty"`
	Fields   []string `json:"fields,omitempty"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Row > 0 {
		return fmt.Sprintf("%s: row %d: %s", d.Severity, d.Row, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Field is one key and value within a Row.
type Field struct {
	Key   string
	Value any
}

// Row is an ordered set of fields. Order is kept for display; lookups are by key.
type Row []Field

// Get returns the value stored under key.
func (r Row) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether key holds a non-empty value.
func (r Row) Has(key string) bool {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Set replaces the value under key, appending the field when absent.
func (r *Row) Set(key string, value any) {
	for i := range *r {
		if (*r)[i].Key == key {
			(*r)[i].Value = value
			return
		}
	}
	*r = append(*r, Field{Key: key, Value: value})
}

// Keys returns the field keys in order.
func (r Row) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Map returns the row as an unordered map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r))
	for _, f := range r {
		m[f.Key] = f.Value
	}
	return m
}

// MarshalJSON encodes the row as a JSON object in field order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Record is the normalized output of every parser.
type Record struct {
	Format      Format         `json:"format"`
	Category    string         `json:"category"`
	Rows        []Row          `json:"rows"`
	Diagnostics []Diagnostic   `json:"diagnostics"`
	Confidence  int            `json:"confidence"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Warnings returns the diagnostics at warning severity or above.
func (r Record) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity != SeverityInfo {
			out = append(out, d)
		}
	}
	return out
}

func (r *Record) diagnose(severity Severity, row int, msg string, fields ...string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{
		Severity: severity,
		Row:      row,
		Fields:   fields,
		Message:  msg,
	})
}

// Parser converts raw bytes into a Record. Implementations never return an
// error for malformed content.
type Parser interface {
	Format() Format
	Parse(ctx context.Context, data []byte, category string) Record
}

// Confidence returns round(100 * valid / total), or 0 when total is 0.
func Confidence(valid, total int) int {
	if total <= 0 {
		return 0
	}
	c := int(math.Round(100 * float64(valid) / float64(total)))
	return max(0, min(c, 100))
}
