// Package domain defines the append-only audit trail of pseudonymization operations.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Operation identifies what an audit entry records.
type Operation string

const (
	OperationPseudonymize   Operation = "PSEUDONYMIZE"
	OperationDepseudonymize Operation = "DEPSEUDONYMIZE"
	OperationCreateSession  Operation = "CREATE_SESSION"
	OperationDeleteSession  Operation = "DELETE_SESSION"
	OperationCleanupExpired Operation = "CLEANUP_EXPIRED"
	OperationEncrypt        Operation = "ENCRYPT"
	OperationDecrypt        Operation = "DECRYPT"
)

// AuditLog is one immutable audit entry.
//
// SessionID is a weak reference: the store nulls it when the session is purged, so it is not
// covered by the signature. No field ever holds an original value.
type AuditLog struct {
	ID          uuid.UUID
	Operation   Operation
	CallerID    string
	SessionID   *uuid.UUID
	Pseudonym   string
	ValueType   string
	Success     bool
	ErrorDetail string
	RequestID   string
	Metadata    map[string]any
	CreatedAt   time.Time
	Signature   []byte
	KekID       *uuid.UUID
}

// IsSigned reports whether the entry carries a signature and the KEK that produced it.
func (a *AuditLog) IsSigned() bool {
	return len(a.Signature) > 0 && a.KekID != nil
}

// VerifyReport summarizes a signature verification pass.
type VerifyReport struct {
	Total      int
	Valid      int
	Unsigned   int
	Invalid    int
	InvalidIDs []uuid.UUID
}

type requestIDKey struct{}

// WithRequestID stores the HTTP request ID so audit entries recorded downstream carry it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID stored by WithRequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}
