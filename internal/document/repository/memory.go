package repository

import (
	"context"
	"sync"
	"time"

	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document"
)

// MemoryRepo is a simple in-memory repository used for unit tests and for
// running the service without MongoDB.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*document.Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*document.Document)}
}

func (m *MemoryRepo) Create(ctx context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[doc.ID]; ok {
		return ErrExists
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	cp := *doc
	m.store[doc.ID] = &cp
	return nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.store[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) GetByRemoteID(ctx context.Context, remoteID string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.store {
		if d.RemoteID != "" && d.RemoteID == remoteID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) Update(ctx context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[doc.ID]; !ok {
		return ErrNotFound
	}
	doc.UpdatedAt = time.Now().UTC()
	cp := *doc
	m.store[doc.ID] = &cp
	return nil
}

func (m *MemoryRepo) ListUnfinished(ctx context.Context) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*document.Document{}
	for _, d := range m.store {
		if d.RemoteID == "" || d.Status.Terminal() {
			continue
		}
		switch d.Status {
		case document.StatusSent, document.StatusInProgress:
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}
