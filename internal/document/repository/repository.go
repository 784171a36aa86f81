package repository

import (
	"context"
	"errors"

	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrExists   = errors.New("document already exists")
)

// Repository is the persistence boundary for the case-record mirror of
// remote envelopes. The record's ID is the caller-generated idempotency key;
// implementations must reject duplicate IDs so a retried create can detect
// the existing record instead of minting a second envelope.
type Repository interface {
	Create(ctx context.Context, doc *document.Document) error
	Get(ctx context.Context, id string) (*document.Document, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*document.Document, error)
	Update(ctx context.Context, doc *document.Document) error
	// ListUnfinished returns sent documents that have not reached a terminal
	// state, for the status-polling worker.
	ListUnfinished(ctx context.Context) ([]*document.Document, error)
}
