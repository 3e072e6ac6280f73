// Package domain defines pseudonymization sessions: time-boxed scopes that own a set of
// mappings and are purged, mappings included, once they expire.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Purpose is the declared reason a session was opened.
type Purpose string

const (
	PurposeExtraction Purpose = "extraction"
	PurposeTesting    Purpose = "testing"
	PurposeAudit      Purpose = "audit"
)

// ParsePurpose validates value as a Purpose.
func ParsePurpose(value string) (Purpose, error) {
	switch p := Purpose(value); p {
	case PurposeExtraction, PurposeTesting, PurposeAudit:
		return p, nil
	default:
		return "", ErrInvalidPurpose
	}
}

// minLifetime keeps expiry strictly after creation for a zero TTL.
const minLifetime = time.Microsecond

// Session scopes a set of mappings.
//
// A session is active from creation until it is found past ExpiresAt, when the cleanup marks
// it inactive and then deletes it. There is no transition back to active.
type Session struct {
	ID        uuid.UUID
	CallerID  string
	Purpose   Purpose
	CreatedAt time.Time
	ExpiresAt time.Time
	Active    bool
	Metadata  map[string]any

	// LookupKeyCiphertext is the session's HMAC key for value hashes, sealed by the
	// Encryption Gateway under LookupKeyVersion.
	LookupKeyCiphertext []byte
	LookupKeyVersion    uint
}

// ExpiresAfter returns the expiry for a session created at createdAt with ttl. A zero or
// negative ttl yields a session that is already expired but still satisfies expiry > creation.
func ExpiresAfter(createdAt time.Time, ttl time.Duration) time.Time {
	if ttl < minLifetime {
		ttl = minLifetime
	}
	return createdAt.Add(ttl)
}

// Live reports whether the session may still be used at now.
func (s *Session) Live(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}

// CleanupResult reports one ExpireNow pass.
type CleanupResult struct {
	// Expired is the number of sessions marked inactive.
	Expired int
	// Deleted is the number of sessions purged together with their mappings.
	Deleted int
}
