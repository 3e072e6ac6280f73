package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
)

type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeKekRepository struct {
	mu   sync.Mutex
	keks map[uuid.UUID]*cryptoDomain.Kek
	err  error
}

func newFakeKekRepository() *fakeKekRepository {
	return &fakeKekRepository{keks: map[uuid.UUID]*cryptoDomain.Kek{}}
}

func (f *fakeKekRepository) Create(_ context.Context, kek *cryptoDomain.Kek) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *kek
	stored.Key = nil
	f.keks[kek.ID] = &stored
	return nil
}

func (f *fakeKekRepository) Update(_ context.Context, kek *cryptoDomain.Kek) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *kek
	stored.Key = nil
	f.keks[kek.ID] = &stored
	return nil
}

func (f *fakeKekRepository) List(_ context.Context) ([]*cryptoDomain.Kek, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	keks := make([]*cryptoDomain.Kek, 0, len(f.keks))
	for _, kek := range f.keks {
		copied := *kek
		keks = append(keks, &copied)
	}
	sort.Slice(keks, func(i, j int) bool { return keks[i].Version > keks[j].Version })
	return keks, nil
}

type fakeDekRepository struct {
	mu   sync.Mutex
	deks map[uuid.UUID]*cryptoDomain.Dek
	err  error
}

func newFakeDekRepository() *fakeDekRepository {
	return &fakeDekRepository{deks: map[uuid.UUID]*cryptoDomain.Dek{}}
}

func (f *fakeDekRepository) Create(_ context.Context, dek *cryptoDomain.Dek) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *dek
	f.deks[dek.ID] = &stored
	return nil
}

func (f *fakeDekRepository) Get(_ context.Context, dekID uuid.UUID) (*cryptoDomain.Dek, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	dek, ok := f.deks[dekID]
	if !ok {
		return nil, cryptoDomain.ErrDekNotFound
	}
	copied := *dek
	return &copied, nil
}

func (f *fakeDekRepository) Update(_ context.Context, dek *cryptoDomain.Dek) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *dek
	f.deks[dek.ID] = &stored
	return nil
}

func (f *fakeDekRepository) Delete(_ context.Context, dekID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.deks, dekID)
	return nil
}

type fakeEncryptionKeyRepository struct {
	mu   sync.Mutex
	keys []*cryptoDomain.EncryptionKey
}

func (f *fakeEncryptionKeyRepository) Create(_ context.Context, key *cryptoDomain.EncryptionKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.keys {
		if existing.Name == key.Name && existing.Version == key.Version {
			return cryptoDomain.ErrEncryptionKeyExists
		}
	}
	stored := *key
	f.keys = append(f.keys, &stored)
	return nil
}

func (f *fakeEncryptionKeyRepository) GetLatest(
	_ context.Context,
	name string,
) (*cryptoDomain.EncryptionKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *cryptoDomain.EncryptionKey
	for _, key := range f.keys {
		if key.Name != name || key.Destroyed() {
			continue
		}
		if latest == nil || key.Version > latest.Version {
			latest = key
		}
	}
	if latest == nil {
		return nil, cryptoDomain.ErrEncryptionKeyNotFound
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeEncryptionKeyRepository) GetByVersion(
	_ context.Context,
	name string,
	version uint,
) (*cryptoDomain.EncryptionKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range f.keys {
		if key.Name == name && key.Version == version {
			copied := *key
			return &copied, nil
		}
	}
	return nil, cryptoDomain.ErrEncryptionKeyNotFound
}

func (f *fakeEncryptionKeyRepository) List(
	_ context.Context,
	name string,
) ([]*cryptoDomain.EncryptionKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]*cryptoDomain.EncryptionKey, 0, len(f.keys))
	for _, key := range f.keys {
		if key.Name == name {
			copied := *key
			keys = append(keys, &copied)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Version > keys[j].Version })
	return keys, nil
}

func (f *fakeEncryptionKeyRepository) MarkDestroyed(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range f.keys {
		if key.ID == id {
			key.DestroyedAt = &at
			key.DekID = uuid.Nil
			return nil
		}
	}
	return cryptoDomain.ErrEncryptionKeyNotFound
}
