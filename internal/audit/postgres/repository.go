// Package postgres provides the PostgreSQL implementation of the audit
// repository.
package postgres

import (
	"context"
	"fmt"

	"github.com/bkotelnikov/shopadmin/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements audit.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL audit repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateEntry appends an audit entry. The timestamp comes from the
// database clock, not the caller.
func (r *Repository) CreateEntry(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_log (action, actor_id, actor_name, actor_email, actor_role, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		entry.Action,
		entry.ActorID,
		entry.ActorName,
		entry.ActorMail,
		entry.ActorRole,
		entry.Details,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// ListEntries returns up to limit entries, newest first.
func (r *Repository) ListEntries(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, action, actor_id, actor_name, actor_email, actor_role, details, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var e domain.AuditEntry
		err := rows.Scan(
			&e.ID,
			&e.Action,
			&e.ActorID,
			&e.ActorName,
			&e.ActorMail,
			&e.ActorRole,
			&e.Details,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
