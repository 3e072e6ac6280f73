// Package domain defines pseudonym mappings and the results of substitution and reversal.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/allisson/pseudonymizer/internal/detection"
)

// Mapping is the encrypted association between a pseudonym and an original value inside
// one session. Ciphertext is bound to SessionID and Pseudonym, and ValueHash is keyed by the
// session's lookup key, so no column reveals or links the original value.
type Mapping struct {
	ID             uuid.UUID
	SessionID      uuid.UUID
	Pseudonym      string
	ValueHash      []byte
	ValueType      detection.ValueType
	Ciphertext     []byte
	KeyVersion     uint
	CreatedAt      time.Time
	AccessCount    int64
	LastAccessedAt *time.Time
}

// SanitizeResult is the outcome of one substitution pass.
type SanitizeResult struct {
	Text string
	// Counts holds the number of distinct values per value type.
	Counts map[string]int
	// Spans are the detected spans. They carry original text and must never leave the process.
	Spans []detection.Span
	// Replaced is the number of occurrences substituted in Text.
	Replaced int
	// Created is the number of new mappings; the rest were reused.
	Created int
}

// PseudonymizeInput is one pseudonymize request.
type PseudonymizeInput struct {
	CallerID string
	Purpose  string
	Text     string
	// SessionID selects an existing live session owned by CallerID. Nil opens a new one.
	SessionID *uuid.UUID
	// TTL overrides the default lifetime of a new session.
	TTL      *time.Duration
	Metadata map[string]any
}

// PseudonymizeOutput is returned to the caller of pseudonymize.
type PseudonymizeOutput struct {
	SessionID     uuid.UUID
	ExpiresAt     time.Time
	SanitizedText string
	EntityCounts  map[string]int
}

// RevealResult is the outcome of one reversal.
type RevealResult struct {
	Text string
	// Revealed is the number of distinct pseudonyms substituted back.
	Revealed int
	// Anomalies lists well-formed pseudonyms that have no mapping in the session.
	Anomalies []string
}
