// Package stats tracks the process-wide creation and retrieval totals.
package stats

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nipun22325/secret-sharing/internal/metrics"
)

// ActiveCounter is the slice of the store the tracker needs: the live count
// of unviewed, unexpired secrets. "Active" is derived from store state on
// every read so it can never drift from ground truth.
type ActiveCounter interface {
	ActiveCount(ctx context.Context, now time.Time) (int64, error)
}

// Tracker holds the monotonic totals. Increments are atomic adds, safe under
// unbounded concurrent callers.
type Tracker struct {
	created atomic.Int64
	viewed  atomic.Int64
	store   ActiveCounter
}

func NewTracker(store ActiveCounter) *Tracker {
	return &Tracker{store: store}
}

func (t *Tracker) RecordCreated() {
	t.created.Add(1)
	metrics.SecretsCreatedTotal.Inc()
}

func (t *Tracker) RecordViewed() {
	t.viewed.Add(1)
	metrics.SecretsViewedTotal.Inc()
}

func (t *Tracker) TotalCreated() int64 {
	return t.created.Load()
}

func (t *Tracker) TotalViewed() int64 {
	return t.viewed.Load()
}

// Active queries the store for the current live secret count.
func (t *Tracker) Active(ctx context.Context) (int64, error) {
	return t.store.ActiveCount(ctx, time.Now())
}
