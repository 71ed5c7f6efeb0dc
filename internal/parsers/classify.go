package parsers

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var extensions = map[string]Format{
	".csv":  FormatTabular,
	".tsv":  FormatTabular,
	".json": FormatStructured,
	".yaml": FormatStructured,
	".yml":  FormatStructured,
	".pdf":  FormatReport,
	".xml":  FormatMarkup,
	".html": FormatMarkup,
	".htm":  FormatMarkup,
	".md":   FormatFreeText,
}

// ambiguous extensions say nothing reliable about content.
var ambiguous = map[string]bool{
	"":      true,
	".txt":  true,
	".text": true,
	".dat":  true,
	".log":  true,
}

// Classify selects a format from the file extension, sniffing the content
// when the extension is missing or ambiguous. Any other extension is
// unsupported.
func Classify(fileName string, data []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	if !ambiguous[ext] {
		return FormatUnknown, fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}

	if f, ok := Sniff(data); ok {
		return f, nil
	}
	return FormatUnknown, fmt.Errorf("%w: unrecognized content", ErrUnsupportedFormat)
}

// Sniff guesses a format from content alone. Binary content is not recognized.
func Sniff(data []byte) (Format, bool) {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return FormatReport, true
	}

	text := decodeText(data)
	if len(bytes.TrimSpace(text)) == 0 {
		return FormatUnknown, false
	}
	if !utf8.Valid(text) || bytes.IndexByte(text, 0) >= 0 {
		return FormatUnknown, false
	}

	switch bytes.TrimSpace(text)[0] {
	case '{', '[':
		return FormatStructured, true
	case '<':
		return FormatMarkup, true
	}

	lines := sampleLines(string(text), 10)
	if len(lines) >= 2 {
		if _, ok := detectDelimiter(lines); ok {
			return FormatTabular, true
		}
	}
	return FormatFreeText, true
}
