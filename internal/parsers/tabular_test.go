package parsers_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/hodie-labs/ingest/internal/parsers"
)

const labCSV = "test,value,unit\nGlucose,95,mg/dL\nLDL,130,mg/dL\nHDL,55,mg/dL\n"

func parseTabular(t *testing.T, data, category string) parsers.Record {
	t.Helper()
	return parsers.Tabular{}.Parse(context.Background(), []byte(data), category)
}

func TestTabularWellFormed(t *testing.T) {
	rec := parseTabular(t, labCSV, "lab")

	assert.Equal(t, parsers.FormatTabular, rec.Format)
	assert.Equal(t, parsers.CategoryLab, rec.Category)
	require.Len(t, rec.Rows, 3)
	assert.Equal(t, 100, rec.Confidence)
	assert.Empty(t, rec.Diagnostics)

	assert.Equal(t, []string{"test", "value", "unit"}, rec.Rows[0].Keys())
	v, _ := rec.Rows[1].Get("value")
	assert.Equal(t, json.Number("130"), v)
}

func TestTabularMissingRequiredField(t *testing.T) {
	data := "test,value,unit\nGlucose,95,mg/dL\nLDL,,mg/dL\nHDL,55,mg/dL\n"
	rec := parseTabular(t, data, "lab")

	require.Len(t, rec.Rows, 3, "rows with missing fields are kept")
	assert.Equal(t, 67, rec.Confidence)
	require.Len(t, rec.Diagnostics, 1)

	d := rec.Diagnostics[0]
	assert.Equal(t, parsers.SeverityWarning, d.Severity)
	assert.Equal(t, 2, d.Row)
	assert.Equal(t, []string{"value"}, d.Fields)
}

func TestTabularHeaderSynonyms(t *testing.T) {
	data := "Biomarker;Result;Units;Reference Range\nGlucose;95;mg/dL;70-99\n"
	rec := parseTabular(t, data, "bloodwork")

	require.Len(t, rec.Rows, 1)
	assert.Equal(t, []string{"test", "value", "unit", "reference_range"}, rec.Rows[0].Keys())
	assert.Equal(t, 100, rec.Confidence)
}

func TestTabularUnknownHeadersKeepLiteralNames(t *testing.T) {
	data := "Test,Value,Lot Number\nGlucose,95,A-17\n"
	rec := parseTabular(t, data, "lab")

	require.Len(t, rec.Rows, 1)
	assert.Equal(t, []string{"test", "value", "Lot Number"}, rec.Rows[0].Keys())
}

func TestTabularGenotypeCommentHeader(t *testing.T) {
	data := "# This data file generated by 23andMe\n" +
		"# rsid\tchromosome\tposition\tgenotype\n" +
		"rs4477212\t1\t82154\tAA\n" +
		"rs3094315\t1\t752566\tAG\n"
	rec := parseTabular(t, data, "dna")

	assert.Equal(t, parsers.CategoryGenetic, rec.Category)
	require.Len(t, rec.Rows, 2)
	assert.Equal(t, 100, rec.Confidence)

	rsid, _ := rec.Rows[0].Get("rsid")
	genotype, _ := rec.Rows[1].Get("genotype")
	assert.Equal(t, "rs4477212", rsid)
	assert.Equal(t, "AG", genotype)
}

func TestTabularUTF16(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte(labCSV))
	require.NoError(t, err)

	rec := parsers.Tabular{}.Parse(context.Background(), data, "lab")
	require.Len(t, rec.Rows, 3)
	assert.Equal(t, 100, rec.Confidence)
}

func TestTabularGeneralCategoryRequiresEveryColumn(t *testing.T) {
	data := "metric,reading\nmood,7\nenergy,\n"
	rec := parseTabular(t, data, "")

	assert.Equal(t, parsers.CategoryGeneral, rec.Category)
	require.Len(t, rec.Rows, 2)
	assert.Equal(t, 50, rec.Confidence)
}

func TestTabularMaxRows(t *testing.T) {
	rec := parsers.Tabular{MaxRows: 2}.Parse(context.Background(), []byte(labCSV), "lab")

	assert.Len(t, rec.Rows, 2)
	assert.Equal(t, 100, rec.Confidence)
	require.Len(t, rec.Diagnostics, 1)
	assert.Contains(t, rec.Diagnostics[0].Message, "row limit 2")
}

func TestTabularEmpty(t *testing.T) {
	t.Run("no content", func(t *testing.T) {
		rec := parseTabular(t, "", "lab")
		assert.Empty(t, rec.Rows)
		assert.Equal(t, 0, rec.Confidence)
		require.Len(t, rec.Diagnostics, 1)
		assert.Equal(t, parsers.SeverityError, rec.Diagnostics[0].Severity)
	})

	t.Run("header only", func(t *testing.T) {
		rec := parseTabular(t, "test,value,unit\n", "lab")
		assert.Empty(t, rec.Rows)
		assert.Equal(t, 0, rec.Confidence)
		require.Len(t, rec.Diagnostics, 1)
		assert.Equal(t, "no data rows", rec.Diagnostics[0].Message)
	})
}
