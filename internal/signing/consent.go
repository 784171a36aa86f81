package signing

import (
	"context"
	"sync"
	"time"
)

// ConsentRecord tracks a pending SMS verification for an embedded-flow
// participant: the reference token issued by the remote service and the
// my-page URL the signer must visit. Records are transient and discarded
// once verification completes or the reference expires.
type ConsentRecord struct {
	Token               string    `json:"token"`
	DocumentID          string    `json:"documentId"`
	ParticipantRemoteID string    `json:"participantRemoteId"`
	ParticipantName     string    `json:"participantName"`
	MyPageURL           string    `json:"myPageUrl"`
	CreatedAt           time.Time `json:"createdAt"`
	ExpiresAt           time.Time `json:"expiresAt"`
}

// ConsentStore holds pending consent records keyed by reference token.
type ConsentStore interface {
	Put(ctx context.Context, rec *ConsentRecord) error
	Get(ctx context.Context, token string) (*ConsentRecord, error)
	Delete(ctx context.Context, token string) error
}

// MemoryConsentStore is the in-process fallback used when Redis is not
// configured, and in unit tests.
type MemoryConsentStore struct {
	mu    sync.RWMutex
	store map[string]*ConsentRecord
}

func NewMemoryConsentStore() *MemoryConsentStore {
	return &MemoryConsentStore{store: make(map[string]*ConsentRecord)}
}

func (m *MemoryConsentStore) Put(ctx context.Context, rec *ConsentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.store[rec.Token] = &cp
	return nil
}

func (m *MemoryConsentStore) Get(ctx context.Context, token string) (*ConsentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.store[token]
	if !ok {
		return nil, nil
	}
	if !rec.ExpiresAt.IsZero() && time.Now().UTC().After(rec.ExpiresAt) {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryConsentStore) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, token)
	return nil
}
