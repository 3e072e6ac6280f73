// Package service provides pseudonym generation, value hashing and text substitution.
package service

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/allisson/pseudonymizer/internal/detection"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
	pseudonymDomain "github.com/allisson/pseudonymizer/internal/pseudonym/domain"
)

// tokenEntropyBytes is the random part of a pseudonym: 128 bits.
const tokenEntropyBytes = 16

var tokenPrefixes = map[detection.ValueType]string{
	detection.ValueTypePerson:     "PERSON",
	detection.ValueTypeTaxID:      "TAXID",
	detection.ValueTypeNationalID: "NATID",
	detection.ValueTypeEmail:      "EMAIL",
	detection.ValueTypePhone:      "PHONE",
	detection.ValueTypeAddress:    "ADDRESS",
	detection.ValueTypeOther:      "OTHER",
}

// tokenPattern matches pseudonyms in any letter case.
var tokenPattern = regexp.MustCompile(`(?i)\b(?:PERSON|TAXID|NATID|EMAIL|PHONE|ADDRESS|OTHER)_[0-9A-F]{32}\b`)

var canonicalToken = regexp.MustCompile(`^(PERSON|TAXID|NATID|EMAIL|PHONE|ADDRESS|OTHER)_[0-9A-F]{32}$`)

// TokenGenerator produces and recognizes pseudonyms of the form PREFIX_<32 hex digits>.
type TokenGenerator interface {
	// NewToken returns a fresh random pseudonym for valueType.
	NewToken(valueType detection.ValueType) (string, error)

	// Validate checks that token is a canonical (upper-case) pseudonym.
	Validate(token string) error
}

type randomTokenGenerator struct{}

// NewTokenGenerator creates a generator backed by crypto/rand.
func NewTokenGenerator() TokenGenerator {
	return &randomTokenGenerator{}
}

func (g *randomTokenGenerator) NewToken(valueType detection.ValueType) (string, error) {
	prefix, ok := tokenPrefixes[valueType]
	if !ok {
		return "", pseudonymDomain.ErrInvalidValueType
	}

	random := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(random); err != nil {
		return "", apperrors.Wrap(err, "failed to read random bytes")
	}
	return prefix + "_" + strings.ToUpper(hex.EncodeToString(random)), nil
}

func (g *randomTokenGenerator) Validate(token string) error {
	if !canonicalToken.MatchString(token) {
		return pseudonymDomain.ErrInvalidToken
	}
	return nil
}

// TokenMatch is one pseudonym occurrence in a text.
type TokenMatch struct {
	Start int
	End   int
	// Token is the occurrence normalized to upper case.
	Token string
}

// FindTokens returns every pseudonym occurrence in text, in order.
func FindTokens(text string) []TokenMatch {
	locs := tokenPattern.FindAllStringIndex(text, -1)
	matches := make([]TokenMatch, len(locs))
	for i, loc := range locs {
		matches[i] = TokenMatch{Start: loc[0], End: loc[1], Token: strings.ToUpper(text[loc[0]:loc[1]])}
	}
	return matches
}

// UniqueTokens returns the distinct normalized tokens of matches in first-seen order.
func UniqueTokens(matches []TokenMatch) []string {
	seen := make(map[string]struct{}, len(matches))
	tokens := make([]string, 0, len(matches))
	for _, match := range matches {
		if _, ok := seen[match.Token]; ok {
			continue
		}
		seen[match.Token] = struct{}{}
		tokens = append(tokens, match.Token)
	}
	return tokens
}
