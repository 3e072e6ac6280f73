// Package dto provides data transfer objects for the pseudonymization HTTP API.
package dto

import (
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	pseudonymDomain "github.com/allisson/pseudonymizer/internal/pseudonym/domain"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
	customValidation "github.com/allisson/pseudonymizer/internal/validation"
)

// PseudonymizeRequest contains the parameters for pseudonymizing a text.
type PseudonymizeRequest struct {
	Text           string         `json:"text"`
	SessionPurpose string         `json:"sessionPurpose"` // "extraction", "testing" or "audit"
	CallerID       string         `json:"callerId"`
	SessionID      *string        `json:"sessionId,omitempty"`  // Reuses a live session owned by the caller
	TTLSeconds     *int           `json:"ttlSeconds,omitempty"` // Lifetime of a new session
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Validate checks if the pseudonymize request is valid. Text length is enforced by the use
// case, which audits the rejection.
func (r *PseudonymizeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Text,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.SessionPurpose,
			validation.Required,
			validation.In(
				string(sessionDomain.PurposeExtraction),
				string(sessionDomain.PurposeTesting),
				string(sessionDomain.PurposeAudit),
			),
		),
		validation.Field(&r.CallerID,
			validation.Required,
			customValidation.CallerID,
		),
		validation.Field(&r.SessionID,
			validation.NilOrNotEmpty,
			customValidation.UUID,
		),
		// a zero lifetime would hand back a session that is already expired
		validation.Field(&r.TTLSeconds,
			validation.NilOrNotEmpty,
			validation.Min(1),
		),
		validation.Field(&r.Metadata,
			customValidation.Metadata,
		),
	)
}

// ToInput converts the request into the use case input. Validate must have passed.
func (r *PseudonymizeRequest) ToInput() *pseudonymDomain.PseudonymizeInput {
	input := &pseudonymDomain.PseudonymizeInput{
		CallerID: r.CallerID,
		Purpose:  r.SessionPurpose,
		Text:     r.Text,
		Metadata: r.Metadata,
	}
	if r.SessionID != nil {
		sessionID := uuid.MustParse(*r.SessionID)
		input.SessionID = &sessionID
	}
	if r.TTLSeconds != nil {
		ttl := time.Duration(*r.TTLSeconds) * time.Second
		input.TTL = &ttl
	}
	return input
}

// DepseudonymizeRequest contains the parameters for restoring a pseudonymized text.
type DepseudonymizeRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId"`
	CallerID  string `json:"callerId"`
}

// Validate checks if the depseudonymize request is valid.
func (r *DepseudonymizeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Text,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.SessionID,
			validation.Required,
			customValidation.UUID,
		),
		validation.Field(&r.CallerID,
			validation.Required,
			customValidation.CallerID,
		),
	)
}
