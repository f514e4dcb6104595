package payments

import (
	"context"
	"log"
	"sync"
	"time"
)

// Resyncer periodically re-syncs every coach with known provider identities,
// a safety net against missed webhooks. Coaches are synced in parallel; each
// coach's sync touches only that coach's rows, so there is no shared mutable
// state between the goroutines.
type Resyncer struct {
	repo     Repository
	engine   *SyncEngine
	interval time.Duration
}

func NewResyncer(repo Repository, engine *SyncEngine, interval time.Duration) *Resyncer {
	return &Resyncer{repo: repo, engine: engine, interval: interval}
}

// Start blocks until ctx is done, running one pass per tick. Run it in its
// own goroutine.
func (r *Resyncer) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("subscription resync worker started (interval %s)", r.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("subscription resync worker stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Resyncer) runOnce(ctx context.Context) {
	accounts, err := r.repo.ListCoachAccountsForResync()
	if err != nil {
		log.Printf("resync pass: listing coach accounts failed: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, account := range accounts {
		wg.Add(1)
		go func(coachID uint) {
			defer wg.Done()
			syncCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := r.engine.SyncAllForCoach(syncCtx, coachID); err != nil {
				log.Printf("resync pass: coach %d: %v", coachID, err)
			}
		}(account.UserID)
	}
	wg.Wait()
}
