package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/verimail/verimail/internal/model"
	"github.com/verimail/verimail/internal/quota"
)

// KeyStore is an in-memory quota.KeyStore for tests. Each operation is
// serialized per key with the store mutex, matching the atomicity the
// ledger requires.
type KeyStore struct {
	mu   sync.Mutex
	keys map[string]*model.APIKey
}

// NewKeyStore creates an empty in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string]*model.APIKey)}
}

// Put inserts or replaces a key record.
func (s *KeyStore) Put(key *model.APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *key
	s.keys[key.ID] = &copied
}

// Get returns a snapshot of the stored record, or nil.
func (s *KeyStore) Get(id string) *model.APIKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[id]
	if !ok {
		return nil
	}
	copied := *key
	return &copied
}

// RolloverAndGet implements quota.KeyStore.
func (s *KeyStore) RolloverAndGet(ctx context.Context, keyID string, today time.Time) (*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok || !key.IsActive {
		return nil, quota.ErrKeyNotFound
	}

	if key.LastRequest != nil {
		stored := key.LastRequest.UTC()
		if stored.Year() != today.Year() || stored.YearDay() != today.YearDay() {
			key.RequestsToday = 0
		}
	}

	copied := *key
	return &copied, nil
}

// IncrementUsage implements quota.KeyStore.
func (s *KeyStore) IncrementUsage(ctx context.Context, keyID string, n int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok {
		return quota.ErrKeyNotFound
	}

	key.RequestsToday += n
	stamp := now
	key.LastRequest = &stamp
	return nil
}
