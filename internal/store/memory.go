package store

import (
	"context"
	"sync"
	"time"

	"github.com/nipun22325/secret-sharing/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps secrets in a map guarded by a mutex. A consumed secret
// leaves behind a tombstone (viewed flag set, payload wiped) until its
// expiry passes, so concurrent losers of the consume race are told the
// secret was already viewed rather than that it never existed.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]*models.Secret
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		secrets: make(map[string]*models.Secret),
	}
}

func (s *MemoryStore) Create(ctx context.Context, secret *models.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.secrets[secret.ID]; ok {
		return ErrDuplicateID
	}

	cp := *secret
	s.secrets[secret.ID] = &cp
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.secrets[id]
	return ok, nil
}

func (s *MemoryStore) Info(ctx context.Context, id string) (*models.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secret, ok := s.secrets[id]
	if !ok || secret.Viewed || !time.Now().Before(secret.ExpiresAt) {
		// Consumed and expired secrets are indistinguishable from ones
		// that never existed.
		return nil, ErrNotFound
	}

	return &models.Info{
		CreatedAt:         secret.CreatedAt,
		ExpiresAt:         secret.ExpiresAt,
		PasswordProtected: secret.Password.Protected(),
		Viewed:            secret.Viewed,
	}, nil
}

func (s *MemoryStore) Verifier(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secret, ok := s.secrets[id]
	switch {
	case !ok:
		return nil, ErrNotFound
	case secret.Viewed:
		return nil, ErrAlreadyViewed
	case !time.Now().Before(secret.ExpiresAt):
		return nil, ErrExpired
	}
	return secret.Password.Verifier, nil
}

func (s *MemoryStore) Consume(ctx context.Context, id string, now time.Time) (*models.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secret, ok := s.secrets[id]
	switch {
	case !ok:
		return nil, ErrNotFound
	case secret.Viewed:
		return nil, ErrAlreadyViewed
	case !now.Before(secret.ExpiresAt):
		return nil, ErrExpired
	}

	out := *secret

	// Tombstone the record: the viewed flag survives until expiry, the
	// content does not.
	secret.Viewed = true
	secret.Ciphertext = nil
	secret.Nonce = nil
	secret.Password = models.Password{}

	return &out, nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, secret := range s.secrets {
		if !now.Before(secret.ExpiresAt) {
			delete(s.secrets, id)
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ActiveCount(ctx context.Context, now time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, secret := range s.secrets {
		if !secret.Viewed && now.Before(secret.ExpiresAt) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.secrets = nil
	return nil
}
