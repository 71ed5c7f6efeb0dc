package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hodie-labs/ingest/internal/config"
	"github.com/hodie-labs/ingest/internal/interpreter"
	"github.com/hodie-labs/ingest/internal/parsers"
)

func newParseCommand(ctx *commandContext) *cobra.Command {
	var (
		category string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a file and print its rows, baseline mapping, and diagnostics",
		Long: "Parse runs the format parser and the baseline mapping for a file without " +
			"touching the database, blob store, or quota.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			registry := parsers.NewRegistry(parserOptions(cfg, ctx.logger(cmd.ErrOrStderr())))
			rec, err := registry.Parse(cmd.Context(), filepath.Base(args[0]), data, category)
			if err != nil {
				return err
			}

			mapping := interpreter.Baseline(rec, category)
			printRecord(cmd.OutOrStdout(), rec, mapping, limit)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", parsers.CategoryGeneral, "Declared data category")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum rows to print (0 prints all)")
	return cmd
}

func parserOptions(cfg *config.Config, logger *slog.Logger) parsers.Options {
	opts := parsers.Options{MaxRows: cfg.Ingest.MaxRows}
	if command := cfg.Ingest.ReportTextCommand; command != "" {
		extractor, err := parsers.NewCommandExtractor(command)
		if err != nil {
			logger.Warn("report text extractor disabled", "error", err)
		} else {
			opts.Extractor = extractor
		}
	}
	return opts
}

func printRecord(w io.Writer, rec parsers.Record, mapping interpreter.MappingResult, limit int) {
	fmt.Fprintf(w, "Format: %s  Category: %s  Rows: %d  Confidence: %d%%\n\n",
		rec.Format, rec.Category, len(rec.Rows), rec.Confidence)

	rows := rec.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if len(rows) > 0 {
		headers := rowHeaders(rows)
		body := make([][]string, 0, len(rows))
		for _, row := range rows {
			line := make([]string, len(headers))
			for i, key := range headers {
				if v, ok := row.Get(key); ok && v != nil {
					line[i] = fmt.Sprint(v)
				}
			}
			body = append(body, line)
		}
		fmt.Fprintln(w, renderTable(headers, body, nil))
		if len(rows) < len(rec.Rows) {
			fmt.Fprintf(w, "... %d more rows\n", len(rec.Rows)-len(rows))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Mapping: %s (%s, %d%%)\n", mapping.Collection, mapping.Source, mapping.Confidence)
	sources := make([]string, 0, len(mapping.Fields))
	for source := range mapping.Fields {
		sources = append(sources, source)
	}
	slices.Sort(sources)
	fieldRows := make([][]string, 0, len(sources))
	for _, source := range sources {
		fieldRows = append(fieldRows, []string{source, mapping.Fields[source]})
	}
	if len(fieldRows) > 0 {
		fmt.Fprintln(w, renderTable([]string{"Source", "Target"}, fieldRows, nil))
	}
	for _, q := range mapping.ClarifyingQuestions {
		fmt.Fprintf(w, "? %s\n", q)
	}

	if len(rec.Diagnostics) == 0 {
		return
	}
	fmt.Fprintln(w)
	diagRows := make([][]string, 0, len(rec.Diagnostics))
	for _, d := range rec.Diagnostics {
		row := ""
		if d.Row > 0 {
			row = strconv.Itoa(d.Row)
		}
		diagRows = append(diagRows, []string{string(d.Severity), row, strings.Join(d.Fields, ", "), d.Message})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Severity", "Row", "Fields", "Message"},
		diagRows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
	))
}

// rowHeaders returns the union of row keys in first-seen order.
func rowHeaders(rows []parsers.Row) []string {
	var headers []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, key := range row.Keys() {
			if !seen[key] {
				seen[key] = true
				headers = append(headers, key)
			}
		}
	}
	return headers
}
