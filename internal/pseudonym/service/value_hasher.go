package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeValue returns the comparison form of a detected value: NFC, case-folded, with runs
// of whitespace collapsed to one space. Two surface forms of the same value share a mapping.
func NormalizeValue(value string) string {
	collapsed := strings.Join(strings.Fields(norm.NFC.String(value)), " ")
	return cases.Fold().String(collapsed)
}

// ValueHasher derives the lookup hash of a normalized value.
type ValueHasher interface {
	Hash(lookupKey []byte, normalized string) []byte
}

type hmacValueHasher struct{}

// NewValueHasher creates an HMAC-SHA256 hasher keyed by each session's lookup key, so equal
// values in different sessions never share a hash.
func NewValueHasher() ValueHasher {
	return &hmacValueHasher{}
}

func (h *hmacValueHasher) Hash(lookupKey []byte, normalized string) []byte {
	mac := hmac.New(sha256.New, lookupKey)
	mac.Write([]byte(normalized))
	return mac.Sum(nil)
}
