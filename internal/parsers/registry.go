package parsers

import (
	"context"
	"fmt"
)

// Options configures the parsers a Registry builds.
type Options struct {
	// MaxRows truncates parsed output; zero means unlimited.
	MaxRows int
	// Extractor supplies report text. Without one, reports yield a placeholder row.
	Extractor TextExtractor
}

// Registry maps each Format to its Parser.
type Registry struct {
	parsers map[Format]Parser
}

// NewRegistry creates a Registry holding one parser per format.
func NewRegistry(opts Options) *Registry {
	r := &Registry{parsers: make(map[Format]Parser)}
	r.Register(Tabular{MaxRows: opts.MaxRows})
	r.Register(Structured{MaxRows: opts.MaxRows})
	r.Register(FreeText{MaxRows: opts.MaxRows})
	r.Register(Report{MaxRows: opts.MaxRows, Extractor: opts.Extractor})
	r.Register(Markup{MaxRows: opts.MaxRows})
	return r
}

// Register installs p for its format, replacing any existing parser.
func (r *Registry) Register(p Parser) {
	r.parsers[p.Format()] = p
}

// Parser returns the parser for f.
func (r *Registry) Parser(f Format) (Parser, error) {
	p, ok := r.parsers[f]
	if !ok {
		return nil, fmt.Errorf("%w: no parser for %s", ErrUnsupportedFormat, f)
	}
	return p, nil
}

// Parse classifies the file and runs the matching parser. The returned
// error is always ErrUnsupportedFormat; malformed content is reported
// through the record's diagnostics instead.
func (r *Registry) Parse(ctx context.Context, fileName string, data []byte, category string) (Record, error) {
	f, err := Classify(fileName, data)
	if err != nil {
		return Record{}, err
	}

	p, err := r.Parser(f)
	if err != nil {
		return Record{}, err
	}

	rec := p.Parse(ctx, data, category)
	if rec.Rows == nil {
		rec.Rows = []Row{}
	}
	if rec.Diagnostics == nil {
		rec.Diagnostics = []Diagnostic{}
	}
	return rec, nil
}
