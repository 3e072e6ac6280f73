package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	cryptoUseCase "github.com/allisson/pseudonymizer/internal/crypto/usecase"
	"github.com/allisson/pseudonymizer/internal/database"
	"github.com/allisson/pseudonymizer/internal/detection"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
	pseudonymDomain "github.com/allisson/pseudonymizer/internal/pseudonym/domain"
	pseudonymService "github.com/allisson/pseudonymizer/internal/pseudonym/service"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

// maxTokenAttempts bounds the search for a pseudonym not yet used anywhere.
const maxTokenAttempts = 5

// anomalousTokenDetail is the audit error detail of a pseudonym with no mapping in the session.
const anomalousTokenDetail = "anomalous_token"

// Config holds Substitution and Reversal Engine configuration.
type Config struct {
	MaxTextLength           int
	MaxPseudonymsPerSession int
	RevealConcurrency       int
	// LazyCleanup purges expired sessions before every pseudonymize and depseudonymize call.
	LazyCleanup bool
	// NameVariants also replaces name-order variants of detected person names.
	NameVariants bool
	Retry        database.RetryConfig
}

type pseudonymUseCase struct {
	cfg         Config
	txManager   database.TxManager
	mappingRepo MappingRepository
	sessions    SessionManager
	detector    Detector
	tokens      pseudonymService.TokenGenerator
	hasher      pseudonymService.ValueHasher
	gateway     cryptoUseCase.EncryptionGateway
	audit       AuditRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// valueGroup is every detected occurrence of one normalized value.
type valueGroup struct {
	valueType detection.ValueType
	original  string
	hash      []byte
	spans     []detection.Span
	layer     int
}

// mappingAAD binds a ciphertext to the session and pseudonym of its row.
func mappingAAD(sessionID uuid.UUID, pseudonym string) []byte {
	aad := make([]byte, 0, len(sessionID)+len(pseudonym))
	aad = append(aad, sessionID[:]...)
	return append(aad, pseudonym...)
}

func (p *pseudonymUseCase) checkLength(text string) error {
	if p.cfg.MaxTextLength > 0 && utf8.RuneCountInString(text) > p.cfg.MaxTextLength {
		return apperrors.Wrapf(pseudonymDomain.ErrTextTooLong, "maximum is %d characters", p.cfg.MaxTextLength)
	}
	return nil
}

// gatewayFailure is an Encryption Gateway error on a single mapping.
type gatewayFailure struct {
	op         auditDomain.Operation
	pseudonym  string
	keyVersion uint
	err        error
}

func (g *gatewayFailure) Error() string {
	return g.err.Error()
}

func (g *gatewayFailure) Unwrap() error {
	return g.err
}

// recordFailure audits a failed operation outside any rolled-back transaction. A gateway failure
// gets a second entry under ENCRYPT or DECRYPT naming the mapping it hit.
func (p *pseudonymUseCase) recordFailure(
	ctx context.Context,
	op auditDomain.Operation,
	callerID string,
	sessionID *uuid.UUID,
	cause error,
) {
	entries := []*auditDomain.AuditLog{{
		Operation:   op,
		CallerID:    callerID,
		SessionID:   sessionID,
		Success:     false,
		ErrorDetail: auditDomain.ErrorDetail(cause),
	}}

	var failure *gatewayFailure
	if apperrors.As(cause, &failure) {
		entry := &auditDomain.AuditLog{
			Operation:   failure.op,
			CallerID:    callerID,
			SessionID:   sessionID,
			Pseudonym:   failure.pseudonym,
			Success:     false,
			ErrorDetail: auditDomain.ErrorDetail(failure.err),
		}
		if failure.keyVersion > 0 {
			entry.Metadata = map[string]any{"key_version": failure.keyVersion}
		}
		entries = append(entries, entry)
	}

	ctx = context.WithoutCancel(ctx)
	for _, entry := range entries {
		if err := p.audit.Record(ctx, entry); err != nil {
			p.logger.Error("failed to record audit log",
				slog.String("operation", string(entry.Operation)),
				slog.Any("error", err),
			)
		}
	}
}

func (p *pseudonymUseCase) lazyCleanup(ctx context.Context) {
	if !p.cfg.LazyCleanup {
		return
	}
	if _, err := p.sessions.ExpireNow(ctx); err != nil {
		p.logger.Warn("lazy session cleanup failed", slog.Any("error", err))
	}
}

// groupValues collapses spans by normalized value, ordered by layer and then by descending length.
func (p *pseudonymUseCase) groupValues(spans []detection.Span, lookupKey []byte) []*valueGroup {
	byValue := make(map[string]*valueGroup, len(spans))
	groups := make([]*valueGroup, 0, len(spans))
	for _, span := range spans {
		normalized := pseudonymService.NormalizeValue(span.Text)
		group, ok := byValue[normalized]
		if !ok {
			group = &valueGroup{
				valueType: span.Type,
				original:  span.Text,
				hash:      p.hasher.Hash(lookupKey, normalized),
				layer:     span.LayerIndex,
			}
			byValue[normalized] = group
			groups = append(groups, group)
		}
		group.spans = append(group.spans, span)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].layer != groups[j].layer {
			return groups[i].layer < groups[j].layer
		}
		return len(groups[i].original) > len(groups[j].original)
	})
	return groups
}

// newToken draws pseudonyms until one is unused. A race lost after the check surfaces as a
// unique violation on insert and retries the whole call.
func (p *pseudonymUseCase) newToken(ctx context.Context, valueType detection.ValueType) (string, error) {
	for range maxTokenAttempts {
		token, err := p.tokens.NewToken(valueType)
		if err != nil {
			return "", err
		}
		exists, err := p.mappingRepo.PseudonymExists(ctx, token)
		if err != nil {
			return "", err
		}
		if !exists {
			return token, nil
		}
	}
	return "", pseudonymDomain.ErrPseudonymCollision
}

// resolve returns the pseudonym of group, creating and encrypting a mapping when the session
// has none yet.
func (p *pseudonymUseCase) resolve(
	ctx context.Context,
	session *sessionDomain.Session,
	group *valueGroup,
) (string, bool, error) {
	existing, err := p.mappingRepo.GetByValueHash(ctx, session.ID, group.hash)
	if err == nil {
		return existing.Pseudonym, false, nil
	}
	if !apperrors.Is(err, pseudonymDomain.ErrMappingNotFound) {
		return "", false, err
	}

	token, err := p.newToken(ctx, group.valueType)
	if err != nil {
		return "", false, err
	}
	sealed, err := p.gateway.Encrypt(ctx, []byte(group.original), mappingAAD(session.ID, token))
	if err != nil {
		return "", false, &gatewayFailure{op: auditDomain.OperationEncrypt, pseudonym: token, err: err}
	}

	mapping := &pseudonymDomain.Mapping{
		ID:         uuid.Must(uuid.NewV7()),
		SessionID:  session.ID,
		Pseudonym:  token,
		ValueHash:  group.hash,
		ValueType:  group.valueType,
		Ciphertext: sealed.Ciphertext,
		KeyVersion: sealed.KeyVersion,
		CreatedAt:  p.now().UTC().Truncate(time.Microsecond),
	}
	stored, created, err := p.mappingRepo.CreateOrGet(ctx, mapping)
	if err != nil {
		return "", false, err
	}
	return stored.Pseudonym, created, nil
}

func (p *pseudonymUseCase) Sanitize(
	ctx context.Context,
	session *sessionDomain.Session,
	text string,
) (*pseudonymDomain.SanitizeResult, error) {
	result, err := p.sanitize(ctx, session, text)
	if err != nil {
		p.recordFailure(ctx, auditDomain.OperationPseudonymize, session.CallerID, &session.ID, err)
		return nil, err
	}
	return result, nil
}

func (p *pseudonymUseCase) sanitize(
	ctx context.Context,
	session *sessionDomain.Session,
	text string,
) (*pseudonymDomain.SanitizeResult, error) {
	if err := p.checkLength(text); err != nil {
		return nil, err
	}

	spans := p.detector.Detect(ctx, text)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lookupKey, err := p.sessions.LookupKey(ctx, session)
	if err != nil {
		return nil, err
	}
	groups := p.groupValues(spans, lookupKey)
	clear(lookupKey)

	replacements := make([]pseudonymService.Replacement, len(groups))
	for i, group := range groups {
		replacements[i] = pseudonymService.Replacement{Spans: group.spans, Variants: p.variants(group)}
	}
	groups, occurrences := keepPlaced(groups, pseudonymService.Locate(text, replacements))

	counts := make(map[string]int)
	for _, group := range groups {
		counts[string(group.valueType)]++
	}

	tokens := make([]string, len(groups))
	created := 0
	err = database.WithRetry(ctx, p.cfg.Retry, func(ctx context.Context) error {
		created = 0
		return p.txManager.WithTx(ctx, func(ctx context.Context) error {
			// share-locks the session row until commit so cleanup cannot purge it mid-call
			if _, err := p.sessions.GetLive(ctx, session.ID); err != nil {
				return err
			}

			existing, err := p.mappingRepo.CountBySession(ctx, session.ID)
			if err != nil {
				return err
			}

			for i, group := range groups {
				token, isNew, err := p.resolve(ctx, session, group)
				if err != nil {
					return err
				}
				tokens[i] = token
				if isNew {
					created++
				}
			}

			if p.cfg.MaxPseudonymsPerSession > 0 && existing+created > p.cfg.MaxPseudonymsPerSession {
				return apperrors.Wrapf(
					pseudonymDomain.ErrTooManyPseudonyms,
					"limit is %d",
					p.cfg.MaxPseudonymsPerSession,
				)
			}

			metadata := map[string]any{
				"entity_counts": counts,
				"created":       created,
				"reused":        len(groups) - created,
			}
			return p.audit.Record(ctx, &auditDomain.AuditLog{
				Operation: auditDomain.OperationPseudonymize,
				CallerID:  session.CallerID,
				SessionID: &session.ID,
				Success:   true,
				Metadata:  metadata,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	sanitized := pseudonymService.Substitute(text, occurrences, tokens)
	replaced := len(occurrences)

	p.logger.Debug("text pseudonymized",
		slog.String("session_id", session.ID.String()),
		slog.Int("values", len(groups)),
		slog.Int("created", created),
		slog.Int("replaced", replaced),
	)

	return &pseudonymDomain.SanitizeResult{
		Text:     sanitized,
		Counts:   counts,
		Spans:    spans,
		Replaced: replaced,
		Created:  created,
	}, nil
}

// keepPlaced drops groups that won no occurrence in the text, such as a name-order variant
// shadowed by the earlier group of the same person, and renumbers occurrences to match.
func keepPlaced(
	groups []*valueGroup,
	occurrences []pseudonymService.Occurrence,
) ([]*valueGroup, []pseudonymService.Occurrence) {
	placed := make([]bool, len(groups))
	for _, o := range occurrences {
		placed[o.Index] = true
	}

	index := make([]int, len(groups))
	kept := make([]*valueGroup, 0, len(groups))
	for i, group := range groups {
		if placed[i] {
			index[i] = len(kept)
			kept = append(kept, group)
		}
	}

	renumbered := make([]pseudonymService.Occurrence, len(occurrences))
	for i, o := range occurrences {
		o.Index = index[o.Index]
		renumbered[i] = o
	}
	return kept, renumbered
}

// variants lists the distinct surface forms of group, plus name-order variants for persons.
func (p *pseudonymUseCase) variants(group *valueGroup) []string {
	seen := make(map[string]struct{}, len(group.spans))
	variants := make([]string, 0, len(group.spans)+2)
	add := func(value string) {
		key := strings.ToLower(strings.Join(strings.Fields(value), " "))
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, value)
	}

	for _, span := range group.spans {
		add(span.Text)
	}
	if p.cfg.NameVariants && group.valueType == detection.ValueTypePerson {
		for _, variant := range pseudonymService.NameVariants(group.original) {
			add(variant)
		}
	}
	return variants
}

func (p *pseudonymUseCase) Pseudonymize(
	ctx context.Context,
	input *pseudonymDomain.PseudonymizeInput,
) (*pseudonymDomain.PseudonymizeOutput, error) {
	if err := p.checkLength(input.Text); err != nil {
		p.recordFailure(ctx, auditDomain.OperationPseudonymize, input.CallerID, input.SessionID, err)
		return nil, err
	}

	p.lazyCleanup(ctx)

	session, err := p.sessionFor(ctx, input)
	if err != nil {
		return nil, err
	}

	result, err := p.Sanitize(ctx, session, input.Text)
	if err != nil {
		return nil, err
	}

	return &pseudonymDomain.PseudonymizeOutput{
		SessionID:     session.ID,
		ExpiresAt:     session.ExpiresAt,
		SanitizedText: result.Text,
		EntityCounts:  result.Counts,
	}, nil
}

// sessionFor reuses the caller's live session when one is named and opens a new one otherwise.
func (p *pseudonymUseCase) sessionFor(
	ctx context.Context,
	input *pseudonymDomain.PseudonymizeInput,
) (*sessionDomain.Session, error) {
	if input.SessionID == nil {
		purpose, err := sessionDomain.ParsePurpose(input.Purpose)
		if err != nil {
			p.recordFailure(ctx, auditDomain.OperationPseudonymize, input.CallerID, nil, err)
			return nil, err
		}
		// failures are audited by the session manager
		return p.sessions.Create(ctx, input.CallerID, purpose, input.TTL, input.Metadata)
	}

	session, err := p.sessions.GetLive(ctx, *input.SessionID)
	if err == nil && session.CallerID != input.CallerID {
		err = sessionDomain.ErrSessionForbidden
	}
	if err != nil {
		p.recordFailure(ctx, auditDomain.OperationPseudonymize, input.CallerID, input.SessionID, err)
		return nil, err
	}
	return session, nil
}

func (p *pseudonymUseCase) Reveal(
	ctx context.Context,
	sessionID uuid.UUID,
	callerID, text string,
) (*pseudonymDomain.RevealResult, error) {
	result, err := p.reveal(ctx, sessionID, callerID, text)
	if err != nil {
		p.recordFailure(ctx, auditDomain.OperationDepseudonymize, callerID, &sessionID, err)
		return nil, err
	}
	return result, nil
}

func (p *pseudonymUseCase) reveal(
	ctx context.Context,
	sessionID uuid.UUID,
	callerID, text string,
) (*pseudonymDomain.RevealResult, error) {
	if err := p.checkLength(text); err != nil {
		return nil, err
	}

	p.lazyCleanup(ctx)

	session, err := p.sessions.GetLive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CallerID != callerID {
		return nil, sessionDomain.ErrSessionForbidden
	}

	matches := pseudonymService.FindTokens(text)
	tokens := pseudonymService.UniqueTokens(matches)
	if len(tokens) == 0 {
		err := database.WithRetry(ctx, p.cfg.Retry, func(ctx context.Context) error {
			return p.audit.Record(ctx, &auditDomain.AuditLog{
				Operation: auditDomain.OperationDepseudonymize,
				CallerID:  callerID,
				SessionID: &sessionID,
				Success:   true,
				Metadata:  map[string]any{"revealed": 0},
			})
		})
		if err != nil {
			return nil, err
		}
		return &pseudonymDomain.RevealResult{Text: text, Anomalies: []string{}}, nil
	}

	var mappings []*pseudonymDomain.Mapping
	err = database.WithRetry(ctx, p.cfg.Retry, func(ctx context.Context) error {
		var err error
		mappings, err = p.mappingRepo.ListByPseudonyms(ctx, sessionID, tokens)
		return err
	})
	if err != nil {
		return nil, err
	}

	plaintexts, err := p.decryptAll(ctx, mappings)
	if err != nil {
		return nil, err
	}

	originals := make(map[string]string, len(mappings))
	valueTypes := make(map[string]detection.ValueType, len(mappings))
	ids := make([]uuid.UUID, len(mappings))
	for i, mapping := range mappings {
		originals[mapping.Pseudonym] = plaintexts[i]
		valueTypes[mapping.Pseudonym] = mapping.ValueType
		ids[i] = mapping.ID
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, match := range matches {
		original, ok := originals[match.Token]
		if !ok {
			continue
		}
		b.WriteString(text[last:match.Start])
		b.WriteString(original)
		last = match.End
	}
	b.WriteString(text[last:])

	entries := make([]*auditDomain.AuditLog, 0, len(tokens))
	anomalies := make([]string, 0)
	for _, token := range tokens {
		valueType, ok := valueTypes[token]
		if !ok {
			anomalies = append(anomalies, token)
			entries = append(entries, &auditDomain.AuditLog{
				Operation:   auditDomain.OperationDepseudonymize,
				CallerID:    callerID,
				SessionID:   &sessionID,
				Pseudonym:   token,
				Success:     false,
				ErrorDetail: anomalousTokenDetail,
			})
			continue
		}
		entries = append(entries, &auditDomain.AuditLog{
			Operation: auditDomain.OperationDepseudonymize,
			CallerID:  callerID,
			SessionID: &sessionID,
			Pseudonym: token,
			ValueType: string(valueType),
			Success:   true,
		})
	}

	if len(anomalies) > 0 {
		p.logger.Warn("anomalous pseudonyms in reversal",
			slog.String("session_id", sessionID.String()),
			slog.Int("count", len(anomalies)),
		)
	}

	// access counters are a metric: lost updates are acceptable and never fail the call
	if len(ids) > 0 {
		if err := p.mappingRepo.IncrementAccess(ctx, ids, p.now().UTC()); err != nil {
			p.logger.Warn("failed to increment mapping access counters",
				slog.String("session_id", sessionID.String()),
				slog.Any("error", err),
			)
		}
	}

	err = database.WithRetry(ctx, p.cfg.Retry, func(ctx context.Context) error {
		return p.audit.RecordBatch(ctx, entries)
	})
	if err != nil {
		return nil, err
	}

	return &pseudonymDomain.RevealResult{
		Text:      b.String(),
		Revealed:  len(mappings),
		Anomalies: anomalies,
	}, nil
}

// decryptAll opens every mapping in parallel. Any failure fails the whole reversal.
func (p *pseudonymUseCase) decryptAll(ctx context.Context, mappings []*pseudonymDomain.Mapping) ([]string, error) {
	plaintexts := make([]string, len(mappings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.RevealConcurrency)
	for i, mapping := range mappings {
		g.Go(func() error {
			plaintext, err := p.gateway.Decrypt(
				gctx,
				mapping.Ciphertext,
				mapping.KeyVersion,
				mappingAAD(mapping.SessionID, mapping.Pseudonym),
			)
			if err != nil {
				return &gatewayFailure{
					op:         auditDomain.OperationDecrypt,
					pseudonym:  mapping.Pseudonym,
					keyVersion: mapping.KeyVersion,
					err:        err,
				}
			}
			plaintexts[i] = string(plaintext)
			clear(plaintext)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plaintexts, nil
}

// NewPseudonymUseCase creates the Substitution and Reversal Engines.
func NewPseudonymUseCase(
	cfg Config,
	txManager database.TxManager,
	mappingRepo MappingRepository,
	sessions SessionManager,
	detector Detector,
	tokens pseudonymService.TokenGenerator,
	hasher pseudonymService.ValueHasher,
	gateway cryptoUseCase.EncryptionGateway,
	audit AuditRecorder,
	logger *slog.Logger,
) PseudonymUseCase {
	if cfg.RevealConcurrency < 1 {
		cfg.RevealConcurrency = 1
	}
	return &pseudonymUseCase{
		cfg:         cfg,
		txManager:   txManager,
		mappingRepo: mappingRepo,
		sessions:    sessions,
		detector:    detector,
		tokens:      tokens,
		hasher:      hasher,
		gateway:     gateway,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
	}
}
