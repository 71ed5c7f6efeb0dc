package parsers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodie-labs/ingest/internal/parsers"
)

func TestClassifyByExtension(t *testing.T) {
	tests := []struct {
		name string
		want parsers.Format
	}{
		{"labs.csv", parsers.FormatTabular},
		{"genome.TSV", parsers.FormatTabular},
		{"export.JSON", parsers.FormatStructured},
		{"export.yml", parsers.FormatStructured},
		{"export.yaml", parsers.FormatStructured},
		{"report.pdf", parsers.FormatReport},
		{"export.xml", parsers.FormatMarkup},
		{"page.html", parsers.FormatMarkup},
		{"page.htm", parsers.FormatMarkup},
		{"notes.md", parsers.FormatFreeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsers.Classify(tt.name, []byte("irrelevant"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifySniffsAmbiguous(t *testing.T) {
	tests := []struct {
		name string
		data string
		want parsers.Format
	}{
		{"scan.txt", "%PDF-1.7\n...", parsers.FormatReport},
		{"export", `{"sleep": []}`, parsers.FormatStructured},
		{"export.dat", "  [1, 2]", parsers.FormatStructured},
		{"export.log", "<root/>", parsers.FormatMarkup},
		{"data.dat", "a;b\n1;2\n3;4\n", parsers.FormatTabular},
		{"data.txt", "test\tvalue\nGlucose\t95\n", parsers.FormatTabular},
		{"notes.txt", "Glucose 95\nfeeling good\n", parsers.FormatFreeText},
		{"one-line.txt", "a,b,c", parsers.FormatFreeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsers.Classify(tt.name, []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyUnsupported(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"photo.png", []byte("\x89PNG")},
		{"archive.zip", []byte("PK")},
		{"data.bin", []byte("a,b\n1,2\n")},
		{"blob.txt", []byte{0x00, 0x01, 0x02, 0x03}},
		{"empty.txt", nil},
		{"spaces", []byte("   \n ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parsers.Classify(tt.name, tt.data)
			assert.ErrorIs(t, err, parsers.ErrUnsupportedFormat)
			assert.Equal(t, parsers.FormatUnknown, f)
		})
	}
}
