package parsers

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16BEBOM = []byte{0xFE, 0xFF}
	utf16LEBOM = []byte{0xFF, 0xFE}

	delimiters = []rune{',', '\t', ';', '|'}
	numeric    = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?(?:[eE][+-]?\d+)?$`)
)

// decodeText strips a byte order mark and converts UTF-16 exports to UTF-8.
// Input without a BOM is returned unchanged.
func decodeText(data []byte) []byte {
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		return data[len(utf8BOM):]
	case bytes.HasPrefix(data, utf16BEBOM), bytes.HasPrefix(data, utf16LEBOM):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err == nil {
			return out
		}
	}
	return data
}

// sampleLines returns up to n non-empty lines that are not # comments.
func sampleLines(text string, n int) []string {
	var lines []string
	for line := range strings.Lines(text) {
		line = strings.TrimRight(line, "\r\n")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return lines
}

// detectDelimiter picks the separator that splits every sampled line into
// the same number of columns, preferring the one that yields the most.
func detectDelimiter(lines []string) (rune, bool) {
	var (
		best      rune
		bestCount int
	)
	for _, d := range delimiters {
		count, ok := consistentCount(lines, d)
		if ok && count > bestCount {
			best, bestCount = d, count
		}
	}
	return best, bestCount > 0
}

func consistentCount(lines []string, d rune) (int, bool) {
	if len(lines) == 0 {
		return 0, false
	}
	want := countOutsideQuotes(lines[0], d)
	if want == 0 {
		return 0, false
	}
	for _, line := range lines[1:] {
		if countOutsideQuotes(line, d) != want {
			return 0, false
		}
	}
	return want, true
}

func countOutsideQuotes(line string, d rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			n++
		}
	}
	return n
}

// coerce turns numeric text into a JSON number and leaves everything else as a string.
func coerce(s string) any {
	s = strings.TrimSpace(s)
	if numeric.MatchString(s) {
		return json.Number(s)
	}
	return s
}
