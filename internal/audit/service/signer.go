// Package service signs audit entries so tampering is detectable.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
)

const signingInfo = "audit-log-signing-v1"

// Signer computes and checks audit entry signatures.
type Signer interface {
	Sign(kekKey []byte, log *auditDomain.AuditLog) ([]byte, error)
	Verify(kekKey []byte, log *auditDomain.AuditLog) error
}

type hmacSigner struct{}

// NewSigner creates an HMAC-SHA256 signer keyed by HKDF(KEK, "audit-log-signing-v1").
func NewSigner() Signer {
	return &hmacSigner{}
}

func (s *hmacSigner) deriveSigningKey(kekKey []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, kekKey, nil, []byte(signingInfo))

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(reader, signingKey); err != nil {
		return nil, err
	}
	return signingKey, nil
}

// canonicalize encodes every signed field. Variable-length fields are length-prefixed.
// session_id is left out since the store nulls it on purge.
func (s *hmacSigner) canonicalize(log *auditDomain.AuditLog) ([]byte, error) {
	buf := make([]byte, 0, 512)

	buf = append(buf, log.ID[:]...)
	buf = appendLengthPrefixed(buf, []byte(log.Operation))
	buf = appendLengthPrefixed(buf, []byte(log.CallerID))
	buf = appendLengthPrefixed(buf, []byte(log.Pseudonym))
	buf = appendLengthPrefixed(buf, []byte(log.ValueType))
	if log.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendLengthPrefixed(buf, []byte(log.ErrorDetail))
	buf = appendLengthPrefixed(buf, []byte(log.RequestID))

	if len(log.Metadata) > 0 {
		metadata, err := json.Marshal(log.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		buf = appendLengthPrefixed(buf, metadata)
	} else {
		buf = appendLengthPrefixed(buf, nil)
	}

	buf = binary.BigEndian.AppendUint64(buf, uint64(log.CreatedAt.UnixMicro()))
	return buf, nil
}

func appendLengthPrefixed(buf, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

func (s *hmacSigner) Sign(kekKey []byte, log *auditDomain.AuditLog) ([]byte, error) {
	signingKey, err := s.deriveSigningKey(kekKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer cryptoDomain.Zero(signingKey)

	canonical, err := s.canonicalize(log)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(canonical)
	return mac.Sum(nil), nil
}

func (s *hmacSigner) Verify(kekKey []byte, log *auditDomain.AuditLog) error {
	expected, err := s.Sign(kekKey, log)
	if err != nil {
		return err
	}
	if !hmac.Equal(log.Signature, expected) {
		return auditDomain.ErrSignatureInvalid
	}
	return nil
}
