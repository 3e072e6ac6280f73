package dto

import (
	"time"

	pseudonymDomain "github.com/allisson/pseudonymizer/internal/pseudonym/domain"
)

// PseudonymizeResponse is returned by POST /v1/pseudonymize.
type PseudonymizeResponse struct {
	SanitizedText      string         `json:"sanitizedText"`
	SessionID          string         `json:"sessionId"`
	ExpiresAt          time.Time      `json:"expiresAt"`
	EntityCountsByType map[string]int `json:"entityCountsByType"`
}

// MapPseudonymizeOutputToResponse converts a use case output into the HTTP response.
func MapPseudonymizeOutputToResponse(output *pseudonymDomain.PseudonymizeOutput) PseudonymizeResponse {
	counts := output.EntityCounts
	if counts == nil {
		counts = map[string]int{}
	}
	return PseudonymizeResponse{
		SanitizedText:      output.SanitizedText,
		SessionID:          output.SessionID.String(),
		ExpiresAt:          output.ExpiresAt,
		EntityCountsByType: counts,
	}
}

// DepseudonymizeResponse is returned by POST /v1/depseudonymize.
type DepseudonymizeResponse struct {
	OriginalText    string   `json:"originalText"`
	AnomalousTokens []string `json:"anomalousTokens"`
}

// MapRevealResultToResponse converts a reversal result into the HTTP response.
func MapRevealResultToResponse(result *pseudonymDomain.RevealResult) DepseudonymizeResponse {
	anomalies := result.Anomalies
	if anomalies == nil {
		anomalies = []string{}
	}
	return DepseudonymizeResponse{
		OriginalText:    result.Text,
		AnomalousTokens: anomalies,
	}
}
