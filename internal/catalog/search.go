package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bkotelnikov/shopadmin/internal/domain"
)

// ErrSuperseded is returned to a search-as-you-type caller whose query
// was replaced by a newer one before it finished. The caller discards
// the result.
var ErrSuperseded = errors.New("search superseded by a newer query")

// DefaultSearchIdle is the debounce window for search-as-you-type.
const DefaultSearchIdle = 300 * time.Millisecond

// SearchFunc runs one search query.
type SearchFunc func(ctx context.Context) ([]domain.Product, error)

// Debouncer coalesces rapid search queries per key (typically the
// session id): a query only runs after the idle window passes without a
// newer one, and a newer query cancels any in-flight older search
// (last-request-wins). A cancelled caller never receives results, so it
// cannot mutate view state after unsubscribing.
type Debouncer struct {
	idle time.Duration

	mu      sync.Mutex
	seqs    map[string]uint64
	cancels map[string]context.CancelFunc
}

// NewDebouncer creates a debouncer with the given idle window.
func NewDebouncer(idle time.Duration) *Debouncer {
	if idle <= 0 {
		idle = DefaultSearchIdle
	}
	return &Debouncer{
		idle:    idle,
		seqs:    make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Do waits out the idle window and then runs fn, unless a newer Do call
// for the same key arrives first, in which case it returns
// ErrSuperseded. Context cancellation returns ctx.Err().
func (d *Debouncer) Do(ctx context.Context, key string, fn SearchFunc) ([]domain.Product, error) {
	d.mu.Lock()
	d.seqs[key]++
	seq := d.seqs[key]
	if cancel := d.cancels[key]; cancel != nil {
		// Abort the in-flight search of the previous query.
		cancel()
		delete(d.cancels, key)
	}
	d.mu.Unlock()

	timer := time.NewTimer(d.idle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	d.mu.Lock()
	if d.seqs[key] != seq {
		d.mu.Unlock()
		return nil, ErrSuperseded
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancels[key] = cancel
	d.mu.Unlock()
	defer cancel()

	results, err := fn(runCtx)

	d.mu.Lock()
	current := d.seqs[key] == seq
	if current {
		delete(d.cancels, key)
	}
	d.mu.Unlock()

	if !current {
		return nil, ErrSuperseded
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, ErrSuperseded
		}
		return nil, err
	}
	return results, nil
}
