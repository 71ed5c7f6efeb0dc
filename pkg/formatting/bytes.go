// Package formatting converts between raw values and the forms operators
// read and write: byte sizes in config and CLI output, and JSON documents
// embedded in model responses.
package formatting

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// units are base-1024 throughout; "KB" means KiB.
var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// unitExponent maps every accepted suffix spelling to its power of 1024.
var unitExponent = func() map[string]int {
	m := map[string]int{"": 0, "B": 0}
	for i, u := range units[1:] {
		prefix := u[:1]
		m[u] = i + 1
		m[prefix] = i + 1
		m[prefix+"IB"] = i + 1
	}
	return m
}()

var errEmptySize = errors.New("empty byte size string")

// FormatBytes renders n with the largest base-1024 unit that keeps the
// value at or above one. Negative precision is treated as zero.
func FormatBytes(n int64, precision int) string {
	if n == 0 {
		return "0 B"
	}
	precision = max(precision, 0)

	f := float64(n)
	i := 0
	for math.Abs(f) >= 1024 && i < len(units)-1 {
		f /= 1024
		i++
	}

	return strconv.FormatFloat(f, 'f', precision, 64) + " " + units[i]
}

// ParseBytes reads a size such as "25MB", "512 KiB", "1.5g", or "4096".
// Units are case-insensitive and base-1024; a bare number is bytes.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmptySize
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	number, unit := s, ""
	if split >= 0 {
		number, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	exp, ok := unitExponent[strings.ToUpper(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}

	size := value * math.Pow(1024, float64(exp))
	if size >= math.MaxInt64 {
		return 0, fmt.Errorf("byte size overflows int64: %q", s)
	}
	return int64(size), nil
}
