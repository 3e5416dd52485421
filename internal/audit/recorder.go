// Package audit provides the append-only audit trail: a synchronous
// append API plus a bounded fire-and-forget queue used by the entity
// services so logging latency never delays a primary mutation.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bkotelnikov/shopadmin/internal/domain"
	"github.com/bkotelnikov/shopadmin/internal/pkg/metrics"
)

// Errors returned by the recorder.
var (
	ErrNoActor = errors.New("actor is required")
)

// Placeholder values substituted for missing fields on read, so one
// malformed entry never fails the whole listing.
const (
	PlaceholderAction = "unknown action"
	PlaceholderName   = "unknown user"
	PlaceholderEmail  = "no email"
	PlaceholderRole   = "unknown role"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 100

// Config contains recorder configuration.
type Config struct {
	QueueSize    int
	WriteTimeout time.Duration
}

// DefaultConfig returns default recorder configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:    256,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder appends audit entries. Record enqueues onto a bounded
// retry-less queue drained by a single goroutine; Append writes
// synchronously. Queue overflow and write failures are counted and
// logged, never propagated.
type Recorder struct {
	repo   Repository
	config Config

	queue  chan domain.AuditEntry
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRecorder creates a recorder. Call Start before using Record.
func NewRecorder(repo Repository, config Config) *Recorder {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Recorder{
		repo:   repo,
		config: config,
		queue:  make(chan domain.AuditEntry, config.QueueSize),
		stopCh: make(chan struct{}),
	}
}

// Start launches the drain goroutine.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop flushes queued entries and stops the drain goroutine.
func (r *Recorder) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	slog.Info("audit recorder stopped")
}

// Append synchronously writes one entry describing an action by actor.
// It rejects an absent actor or an actor without an identifier. The
// store assigns the timestamp at write time.
func (r *Recorder) Append(ctx context.Context, actor *domain.User, action, details string) (string, error) {
	entry, err := newEntry(actor, action, details)
	if err != nil {
		return "", err
	}

	if err := r.repo.CreateEntry(ctx, entry); err != nil {
		return "", err
	}

	metrics.AuditEntriesWritten.Inc()
	return entry.ID, nil
}

// Record enqueues one entry without blocking the caller. Invalid actors
// and queue overflow are logged and dropped; Record never returns an
// error because audit failure must not affect the primary mutation.
func (r *Recorder) Record(actor *domain.User, action, details string) {
	entry, err := newEntry(actor, action, details)
	if err != nil {
		slog.Warn("audit entry rejected", "action", action, "error", err)
		metrics.AuditEntriesDropped.WithLabelValues("invalid_actor").Inc()
		return
	}

	select {
	case r.queue <- *entry:
	default:
		slog.Warn("audit queue full, entry dropped", "action", action, "actor_id", entry.ActorID)
		metrics.AuditEntriesDropped.WithLabelValues("queue_full").Inc()
	}
}

// List returns up to limit entries, newest first. Missing fields are
// replaced with placeholders instead of failing the read.
func (r *Recorder) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	entries, err := r.repo.ListEntries(ctx, limit)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		applyPlaceholders(&entries[i])
	}
	return entries, nil
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-r.stopCh:
			// Flush what is already queued, then exit.
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

// write persists one queued entry. No retries: a failed audit write is
// dropped by design.
func (r *Recorder) write(entry domain.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.repo.CreateEntry(ctx, &entry); err != nil {
		slog.Warn("audit write failed, entry dropped",
			"action", entry.Action,
			"actor_id", entry.ActorID,
			"error", err,
		)
		metrics.AuditEntriesDropped.WithLabelValues("write_failed").Inc()
		return
	}

	metrics.AuditEntriesWritten.Inc()
}

func newEntry(actor *domain.User, action, details string) (*domain.AuditEntry, error) {
	if actor == nil || actor.ID == "" {
		return nil, ErrNoActor
	}

	return &domain.AuditEntry{
		Action:    action,
		ActorID:   actor.ID,
		ActorName: actor.Username,
		ActorMail: actor.Email,
		ActorRole: string(actor.Role),
		Details:   details,
	}, nil
}

func applyPlaceholders(e *domain.AuditEntry) {
	if e.Action == "" {
		e.Action = PlaceholderAction
	}
	if e.ActorName == "" {
		e.ActorName = PlaceholderName
	}
	if e.ActorMail == "" {
		e.ActorMail = PlaceholderEmail
	}
	if e.ActorRole == "" {
		e.ActorRole = PlaceholderRole
	}
}
