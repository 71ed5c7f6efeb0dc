package digest_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/hodie-labs/ingest/pkg/digest"
)

func TestSumDeterministic(t *testing.T) {
	data := []byte("test,value,unit\nGlucose,95,mg/dL\n")

	first := digest.Sum(data)
	second := digest.Sum(append([]byte(nil), data...))

	if first != second {
		t.Errorf("digest mismatch: %s != %s", first, second)
	}
	if !strings.HasPrefix(first.String(), digest.Prefix) {
		t.Errorf("missing prefix: %s", first)
	}
	if len(first.String()) != len(digest.Prefix)+64 {
		t.Errorf("length: got %d", len(first.String()))
	}
}

func TestSumDistinguishesContent(t *testing.T) {
	a := digest.Sum([]byte("steps,100"))
	b := digest.Sum([]byte("steps,101"))

	if a == b {
		t.Error("different content produced identical digests")
	}
}

func TestSumEmpty(t *testing.T) {
	d := digest.Sum(nil)
	if _, err := digest.Parse(d.String()); err != nil {
		t.Errorf("digest of empty input should parse: %v", err)
	}
}

func TestParse(t *testing.T) {
	valid := digest.Sum([]byte("x")).String()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", valid, false},
		{"missing prefix", strings.TrimPrefix(valid, digest.Prefix), true},
		{"short", digest.Prefix + "abcd", true},
		{"not hex", digest.Prefix + strings.Repeat("z", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := digest.Parse(tt.input)
			if tt.wantErr && !errors.Is(err, digest.ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestShort(t *testing.T) {
	d := digest.Sum([]byte("x"))
	if got := d.Short(); len(got) != len(digest.Prefix)+12 {
		t.Errorf("short length: got %d", len(got))
	}
}
