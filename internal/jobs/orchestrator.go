// Package jobs owns the job state machine: synchronous creation, detached
// background generation, and terminal-state resolution.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// Store is the persistence surface the orchestrator needs.
type Store interface {
	CreateJob(ctx context.Context, job domain.Job) error
	PatchTerminal(ctx context.Context, jobID string, status domain.Status, itinerary []domain.Day, errMsg string, completedAt time.Time) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
}

// Generator produces a validated itinerary.
type Generator interface {
	Generate(ctx context.Context, destination string, durationDays int) ([]domain.Day, error)
}

// Options configures an Orchestrator.
type Options struct {
	Store     Store
	Generator Generator
	Logger    *infra.Logger
}

// Orchestrator drives each job from processing to exactly one terminal
// state. A job's document sees one initial write on the synchronous path
// and one terminal write from the background task, so no two writers ever
// race on the same document.
type Orchestrator struct {
	store     Store
	generator Generator
	logger    *infra.Logger
	wg        sync.WaitGroup
	now       func() time.Time
	newID     func() string
}

// NewOrchestrator wires the state machine over its collaborators.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("jobs: store is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("jobs: generator is required")
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Orchestrator{
		store:     opts.Store,
		generator: opts.Generator,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Submit validates the request, creates the job document synchronously and
// schedules generation as a background task. It returns the job id without
// waiting for generation; the job is readable the moment Submit returns.
func (o *Orchestrator) Submit(ctx context.Context, destination string, durationDays int) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", fmt.Errorf("%w: destination is required", domain.ErrInvalidInput)
	}
	if durationDays < 1 {
		return "", fmt.Errorf("%w: durationDays must be a positive integer", domain.ErrInvalidInput)
	}

	jobID := o.newID()
	job := domain.Job{
		JobID:        jobID,
		Status:       domain.StatusProcessing,
		Destination:  destination,
		DurationDays: durationDays,
		CreatedAt:    o.now().UTC(),
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	o.logger.Info().
		Str("job_id", jobID).
		Str("destination", destination).
		Int("duration_days", durationDays).
		Msg("jobs: accepted")

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// Detached from the request context: the background task must
		// reach a terminal state even after the response has been sent.
		o.run(context.Background(), jobID, destination, durationDays)
	}()

	return jobID, nil
}

// run resolves one job to a terminal state. The terminal write is best
// effort: if it fails the job stays in processing for the sweeper to repair.
func (o *Orchestrator) run(ctx context.Context, jobID, destination string, durationDays int) {
	itin, genErr := o.generator.Generate(ctx, destination, durationDays)
	completedAt := o.now().UTC()

	if genErr != nil {
		o.logger.Error().Err(genErr).Str("job_id", jobID).Msg("jobs: generation failed")
		if err := o.store.PatchTerminal(ctx, jobID, domain.StatusFailed, nil, genErr.Error(), completedAt); err != nil {
			o.logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: terminal write failed, job stuck in processing")
		}
		return
	}

	if err := o.store.PatchTerminal(ctx, jobID, domain.StatusCompleted, itin, "", completedAt); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: terminal write failed, job stuck in processing")
		return
	}
	o.logger.Info().Str("job_id", jobID).Int("days", len(itin)).Msg("jobs: completed")
}

// Status returns the current snapshot for jobID, or domain.ErrNotFound.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*domain.Job, error) {
	return o.store.GetJob(ctx, jobID)
}

// Wait blocks until all in-flight background jobs have resolved or ctx
// expires. Called during shutdown so the process does not terminate under
// running jobs.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
