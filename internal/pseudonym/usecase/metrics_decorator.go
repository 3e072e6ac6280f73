package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/pseudonymizer/internal/metrics"
	pseudonymDomain "github.com/allisson/pseudonymizer/internal/pseudonym/domain"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

// pseudonymUseCaseWithMetrics decorates PseudonymUseCase with metrics instrumentation.
type pseudonymUseCaseWithMetrics struct {
	next    PseudonymUseCase
	metrics metrics.BusinessMetrics
}

// NewPseudonymUseCaseWithMetrics wraps a PseudonymUseCase with metrics recording.
func NewPseudonymUseCaseWithMetrics(useCase PseudonymUseCase, m metrics.BusinessMetrics) PseudonymUseCase {
	return &pseudonymUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (p *pseudonymUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	p.metrics.ObserveOperation(ctx, "pseudonym", operation, time.Since(start), err)
}

func (p *pseudonymUseCaseWithMetrics) Sanitize(
	ctx context.Context,
	session *sessionDomain.Session,
	text string,
) (*pseudonymDomain.SanitizeResult, error) {
	start := time.Now()
	result, err := p.next.Sanitize(ctx, session, text)
	p.record(ctx, "sanitize", start, err)
	return result, err
}

func (p *pseudonymUseCaseWithMetrics) Pseudonymize(
	ctx context.Context,
	input *pseudonymDomain.PseudonymizeInput,
) (*pseudonymDomain.PseudonymizeOutput, error) {
	start := time.Now()
	output, err := p.next.Pseudonymize(ctx, input)
	p.record(ctx, "pseudonymize", start, err)
	return output, err
}

func (p *pseudonymUseCaseWithMetrics) Reveal(
	ctx context.Context,
	sessionID uuid.UUID,
	callerID, text string,
) (*pseudonymDomain.RevealResult, error) {
	start := time.Now()
	result, err := p.next.Reveal(ctx, sessionID, callerID, text)
	p.record(ctx, "depseudonymize", start, err)
	if err == nil && len(result.Anomalies) > 0 {
		p.metrics.RecordAnomalies(ctx, len(result.Anomalies))
	}
	return result, err
}
