// Package reaper runs the periodic sweep that purges expired secrets. The
// sweep is advisory cleanup to bound storage growth; the one-time-view
// guarantee is enforced by the store's consume primitive, not here.
package reaper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nipun22325/secret-sharing/internal/metrics"
)

const sweepTimeout = 30 * time.Second

// Store is the only store surface the reaper touches.
type Store interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Reaper invokes DeleteExpired on a fixed interval. Start and Stop bracket
// the process lifetime; Stop waits for an in-flight sweep to finish so no
// batch is interrupted midway.
type Reaper struct {
	store    Store
	interval time.Duration
	cron     *cron.Cron
	mu       sync.Mutex
	running  bool
	logger   zerolog.Logger
}

func New(store Store, interval time.Duration) *Reaper {
	return &Reaper{
		store:    store,
		interval: interval,
		cron:     cron.New(),
		logger:   log.With().Str("component", "reaper").Logger(),
	}
}

func (r *Reaper) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), r.sweep); err != nil {
		return fmt.Errorf("scheduling expiry sweep: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.logger.Info().Dur("interval", r.interval).Msg("expiry reaper started")
	return nil
}

// Stop halts the schedule and waits for any running sweep to complete.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	ctx := r.cron.Stop()
	<-ctx.Done()
	r.running = false
	r.logger.Info().Msg("expiry reaper stopped")
}

func (r *Reaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	deleted, err := r.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		r.logger.Error().Err(err).Msg("expiry sweep failed")
		return
	}

	if deleted > 0 {
		metrics.SecretsReapedTotal.Add(float64(deleted))
		r.logger.Info().Int64("deleted", deleted).Msg("expired secrets purged")
	} else {
		r.logger.Debug().Msg("expiry sweep found nothing to purge")
	}
}
