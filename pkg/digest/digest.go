// Package digest computes the content digests used to recognise identical uploads.
package digest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Prefix identifies the hash algorithm in the textual form of a Digest.
const Prefix = "blake3:"

// ErrInvalid indicates a string is not a well-formed digest.
var ErrInvalid = errors.New("invalid content digest")

// Digest is the textual form of a 256-bit BLAKE3 hash: Prefix followed by 64 hex characters.
type Digest string

// Sum returns the digest of data. Identical inputs always produce identical digests.
func Sum(data []byte) Digest {
	sum := blake3.Sum256(data)
	return Digest(Prefix + hex.EncodeToString(sum[:]))
}

// Parse validates s and returns it as a Digest.
func Parse(s string) (Digest, error) {
	hexPart, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return "", fmt.Errorf("%w: missing %q prefix", ErrInvalid, Prefix)
	}
	if len(hexPart) != 64 {
		return "", fmt.Errorf("%w: expected 64 hex characters, got %d", ErrInvalid, len(hexPart))
	}
	if _, err := hex.DecodeString(hexPart); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return Digest(s), nil
}

func (d Digest) String() string {
	return string(d)
}

// Short returns an abbreviated form for log output.
func (d Digest) Short() string {
	s := string(d)
	if len(s) > len(Prefix)+12 {
		return s[:len(Prefix)+12]
	}
	return s
}
