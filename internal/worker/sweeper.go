package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"rentloop/internal/model"
	"rentloop/internal/repository"
)

const (
	// DefaultSweepInterval is how often the sweeper scans for orphans.
	DefaultSweepInterval = 10 * time.Minute

	// DefaultStagedTTL is how long a staged upload may linger before it is
	// considered abandoned.
	DefaultStagedTTL = time.Hour

	// sweepBatchSize bounds how many orphans one pass reclaims.
	sweepBatchSize = 100
)

// ObjectDeleter is the slice of the media store the sweeper needs.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Sweeper reclaims orphaned media: objects whose upload batch was staged
// but never committed, because the enclosing create or update failed or the
// client disconnected mid-upload.
type Sweeper struct {
	intents  repository.IntentRepository
	store    ObjectDeleter
	interval time.Duration
	ttl      time.Duration
	logger   *zap.SugaredLogger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// SweeperConfig holds configuration for the sweeper.
type SweeperConfig struct {
	Interval time.Duration
	TTL      time.Duration
}

func NewSweeper(intents repository.IntentRepository, store ObjectDeleter, cfg SweeperConfig, logger *zap.SugaredLogger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultStagedTTL
	}

	return &Sweeper{
		intents:  intents,
		store:    store,
		interval: cfg.Interval,
		ttl:      cfg.TTL,
		logger:   logger,
	}
}

// Start begins the background loop. Call Stop to shut down.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Infow("orphan sweeper started", "interval", s.interval, "staged_ttl", s.ttl)
}

// Stop gracefully shuts the sweeper down. Blocks until the loop has exited.
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("orphan sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.logger.Errorw("sweep failed", "error", err)
			} else if n > 0 {
				s.logger.Infow("reclaimed orphaned media", "count", n)
			}
		}
	}
}

// SweepOnce reclaims one batch of abandoned staged uploads and reports how
// many objects were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.ttl)

	intents, err := s.intents.FindStaged(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	removed := make([]string, 0, len(intents))
	for _, intent := range intents {
		if intent.State != model.IntentStaged {
			continue
		}
		if err := s.store.Delete(ctx, intent.Key); err != nil {
			s.logger.Warnw("failed to delete orphaned object", "key", intent.Key, "error", err)
			continue
		}
		removed = append(removed, intent.Key)
	}

	if err := s.intents.Remove(ctx, removed); err != nil {
		return len(removed), err
	}

	return len(removed), nil
}
