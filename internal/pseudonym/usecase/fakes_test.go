package usecase

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	"github.com/allisson/pseudonymizer/internal/detection"
	pseudonymDomain "github.com/allisson/pseudonymizer/internal/pseudonym/domain"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTxManager rolls the mapping store back when fn fails.
type fakeTxManager struct {
	repo *fakeMappingRepository
}

func (f fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := f.repo.snapshot()
	if err := fn(ctx); err != nil {
		f.repo.restore(snapshot)
		return err
	}
	return nil
}

type fakeMappingRepository struct {
	mu       sync.Mutex
	mappings map[uuid.UUID]*pseudonymDomain.Mapping
	// taken are pseudonyms reported as already used elsewhere.
	taken          map[string]bool
	incrementErr   error
	incrementCalls int
	// listErrs are returned by successive ListByPseudonyms calls before it succeeds.
	listErrs  []error
	listCalls int
}

func newFakeMappingRepository() *fakeMappingRepository {
	return &fakeMappingRepository{
		mappings: map[uuid.UUID]*pseudonymDomain.Mapping{},
		taken:    map[string]bool{},
	}
}

func (f *fakeMappingRepository) snapshot() map[uuid.UUID]pseudonymDomain.Mapping {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make(map[uuid.UUID]pseudonymDomain.Mapping, len(f.mappings))
	for id, mapping := range f.mappings {
		copied[id] = *mapping
	}
	return copied
}

func (f *fakeMappingRepository) restore(snapshot map[uuid.UUID]pseudonymDomain.Mapping) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappings = make(map[uuid.UUID]*pseudonymDomain.Mapping, len(snapshot))
	for id, mapping := range snapshot {
		m := mapping
		f.mappings[id] = &m
	}
}

func (f *fakeMappingRepository) CreateOrGet(
	_ context.Context,
	mapping *pseudonymDomain.Mapping,
) (*pseudonymDomain.Mapping, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stored := range f.mappings {
		if stored.SessionID == mapping.SessionID && bytes.Equal(stored.ValueHash, mapping.ValueHash) {
			copied := *stored
			return &copied, false, nil
		}
		if stored.Pseudonym == mapping.Pseudonym {
			return nil, false, pseudonymDomain.ErrPseudonymCollision
		}
	}
	stored := *mapping
	f.mappings[mapping.ID] = &stored
	return mapping, true, nil
}

func (f *fakeMappingRepository) GetByValueHash(
	_ context.Context,
	sessionID uuid.UUID,
	valueHash []byte,
) (*pseudonymDomain.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stored := range f.mappings {
		if stored.SessionID == sessionID && bytes.Equal(stored.ValueHash, valueHash) {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pseudonymDomain.ErrMappingNotFound
}

func (f *fakeMappingRepository) ListByPseudonyms(
	_ context.Context,
	sessionID uuid.UUID,
	pseudonyms []string,
) ([]*pseudonymDomain.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		return nil, err
	}
	wanted := make(map[string]bool, len(pseudonyms))
	for _, pseudonym := range pseudonyms {
		wanted[pseudonym] = true
	}
	var mappings []*pseudonymDomain.Mapping
	for _, stored := range f.mappings {
		if stored.SessionID == sessionID && wanted[stored.Pseudonym] {
			copied := *stored
			mappings = append(mappings, &copied)
		}
	}
	return mappings, nil
}

func (f *fakeMappingRepository) PseudonymExists(_ context.Context, pseudonym string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taken[pseudonym] {
		return true, nil
	}
	for _, stored := range f.mappings {
		if stored.Pseudonym == pseudonym {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMappingRepository) IncrementAccess(_ context.Context, ids []uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incrementCalls++
	if f.incrementErr != nil {
		return f.incrementErr
	}
	for _, id := range ids {
		if stored, ok := f.mappings[id]; ok {
			stored.AccessCount++
			accessed := at
			stored.LastAccessedAt = &accessed
		}
	}
	return nil
}

func (f *fakeMappingRepository) CountBySession(_ context.Context, sessionID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, stored := range f.mappings {
		if stored.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (f *fakeMappingRepository) deleteSession(sessionID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, stored := range f.mappings {
		if stored.SessionID == sessionID {
			delete(f.mappings, id)
		}
	}
}

func (f *fakeMappingRepository) bySession(sessionID uuid.UUID) []*pseudonymDomain.Mapping {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mappings []*pseudonymDomain.Mapping
	for _, stored := range f.mappings {
		if stored.SessionID == sessionID {
			copied := *stored
			mappings = append(mappings, &copied)
		}
	}
	return mappings
}

// fakeSessionManager keeps lookup keys in memory and cascades expiry into the mapping store.
type fakeSessionManager struct {
	mu          sync.Mutex
	sessions    map[uuid.UUID]*sessionDomain.Session
	keys        map[uuid.UUID][]byte
	mappings    *fakeMappingRepository
	expireCalls int
}

func newFakeSessionManager(mappings *fakeMappingRepository) *fakeSessionManager {
	return &fakeSessionManager{
		sessions: map[uuid.UUID]*sessionDomain.Session{},
		keys:     map[uuid.UUID][]byte{},
		mappings: mappings,
	}
}

func (f *fakeSessionManager) Create(
	_ context.Context,
	callerID string,
	purpose sessionDomain.Purpose,
	ttl *time.Duration,
	metadata map[string]any,
) (*sessionDomain.Session, error) {
	lifetime := time.Hour
	if ttl != nil {
		lifetime = *ttl
	}
	now := time.Now().UTC()
	session := &sessionDomain.Session{
		ID:        uuid.Must(uuid.NewV7()),
		CallerID:  callerID,
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: sessionDomain.ExpiresAfter(now, lifetime),
		Active:    true,
		Metadata:  metadata,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *session
	f.sessions[session.ID] = &stored
	f.keys[session.ID] = bytes.Repeat([]byte{byte(len(f.keys) + 1)}, 32)
	return session, nil
}

func (f *fakeSessionManager) GetLive(_ context.Context, id uuid.UUID) (*sessionDomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, sessionDomain.ErrSessionNotFound
	}
	if !session.Live(time.Now()) {
		return nil, sessionDomain.ErrSessionExpired
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionManager) LookupKey(_ context.Context, session *sessionDomain.Session) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.keys[session.ID]
	if !ok {
		return nil, sessionDomain.ErrSessionNotFound
	}
	return bytes.Clone(key), nil
}

func (f *fakeSessionManager) ExpireNow(context.Context) (*sessionDomain.CleanupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireCalls++
	result := &sessionDomain.CleanupResult{}
	now := time.Now()
	for id, session := range f.sessions {
		if session.ExpiresAt.After(now) {
			continue
		}
		result.Expired++
		result.Deleted++
		delete(f.sessions, id)
		delete(f.keys, id)
		f.mappings.deleteSession(id)
	}
	return result, nil
}

func (f *fakeSessionManager) expire(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.sessions[id]; ok {
		session.ExpiresAt = time.Now().Add(-time.Second)
	}
}

type fakeAuditRecorder struct {
	mu      sync.Mutex
	entries []*auditDomain.AuditLog
	err     error
	// batchErrs are returned by successive RecordBatch calls before it succeeds.
	batchErrs  []error
	batchCalls int
}

func (f *fakeAuditRecorder) Record(_ context.Context, entry *auditDomain.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && entry.Success {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRecorder) RecordBatch(_ context.Context, entries []*auditDomain.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if len(f.batchErrs) > 0 {
		err := f.batchErrs[0]
		f.batchErrs = f.batchErrs[1:]
		return err
	}
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeAuditRecorder) byOperation(op auditDomain.Operation) []*auditDomain.AuditLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*auditDomain.AuditLog
	for _, entry := range f.entries {
		if entry.Operation == op {
			matched = append(matched, entry)
		}
	}
	return matched
}

// stubDetector returns a fixed span for every occurrence of each configured value.
type stubDetector struct {
	values map[string]detection.ValueType
}

func (s stubDetector) Detect(_ context.Context, text string) []detection.Span {
	var spans []detection.Span
	for value, valueType := range s.values {
		offset := 0
		for {
			idx := bytes.Index([]byte(text[offset:]), []byte(value))
			if idx < 0 {
				break
			}
			start := offset + idx
			spans = append(spans, detection.Span{
				Start: start,
				End:   start + len(value),
				Type:  valueType,
				Text:  value,
				Layer: "stub",
			})
			offset = start + len(value)
		}
	}
	return spans
}

// fixedTokenGenerator always returns the same pseudonym.
type fixedTokenGenerator struct {
	token string
	calls int
}

func (g *fixedTokenGenerator) NewToken(detection.ValueType) (string, error) {
	g.calls++
	return g.token, nil
}

func (g *fixedTokenGenerator) Validate(string) error {
	return nil
}
