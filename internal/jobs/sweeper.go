package jobs

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

const stuckJobMessage = "generation did not reach a terminal state; marked failed by repair sweep"

// SweeperStore is the persistence surface the sweeper needs.
type SweeperStore interface {
	StaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]domain.Job, error)
	PatchTerminal(ctx context.Context, jobID string, status domain.Status, itinerary []domain.Day, errMsg string, completedAt time.Time) error
}

// SweeperOptions configures a Sweeper.
type SweeperOptions struct {
	Store      SweeperStore
	StaleAfter time.Duration
	BatchSize  int
	Logger     *infra.Logger
}

// Sweeper repairs jobs whose terminal write never landed: any document
// still in processing past the staleness threshold is marked failed with a
// diagnostic, so pollers stop seeing a job that will never finish.
type Sweeper struct {
	store      SweeperStore
	staleAfter time.Duration
	batchSize  int
	logger     *infra.Logger
	now        func() time.Time
}

// NewSweeper builds a sweeper with defaults of a 30 minute threshold and a
// batch of 100 documents per pass.
func NewSweeper(opts SweeperOptions) (*Sweeper, error) {
	if opts.Store == nil {
		return nil, errors.New("jobs: sweeper store is required")
	}
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Sweeper{
		store:      opts.Store,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Sweep runs one repair pass and returns how many jobs were marked failed.
// Individual patch failures are logged and skipped; the next pass will see
// the same document again.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.staleAfter)
	stale, err := s.store.StaleProcessing(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, job := range stale {
		if err := s.store.PatchTerminal(ctx, job.JobID, domain.StatusFailed, nil, stuckJobMessage, s.now().UTC()); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.JobID).Msg("sweeper: repair write failed")
			continue
		}
		s.logger.Warn().
			Str("job_id", job.JobID).
			Time("created_at", job.CreatedAt).
			Msg("sweeper: marked stuck job failed")
		repaired++
	}
	return repaired, nil
}
