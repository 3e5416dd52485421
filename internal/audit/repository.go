package audit

import (
	"context"

	"github.com/bkotelnikov/shopadmin/internal/domain"
)

// Repository defines the interface for the append-only audit store.
// Entries are never updated or deleted.
type Repository interface {
	// CreateEntry persists an entry. The store assigns the id and the
	// write-time timestamp; both are filled into the given entry.
	CreateEntry(ctx context.Context, entry *domain.AuditEntry) error

	// ListEntries returns up to limit entries, newest first.
	ListEntries(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}
