package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"server/internal/domain"
)

type fakeStore struct {
	mu          sync.Mutex
	jobs        map[string]domain.Job
	createErr   error
	patchErr    error
	patchCalls  int
	createCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]domain.Job)}
}

func (s *fakeStore) CreateJob(ctx context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return s.createErr
	}
	s.jobs[job.JobID] = job
	return nil
}

func (s *fakeStore) PatchTerminal(ctx context.Context, jobID string, status domain.Status, itinerary []domain.Day, errMsg string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patchCalls++
	if s.patchErr != nil {
		return s.patchErr
	}
	job := s.jobs[jobID]
	job.Status = status
	job.Itinerary = itinerary
	job.Error = errMsg
	job.CompletedAt = &completedAt
	s.jobs[jobID] = job
	return nil
}

func (s *fakeStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (s *fakeStore) snapshot(jobID string) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	return job, ok
}

type fakeGenerator struct {
	days []domain.Day
	err  error
}

func (g *fakeGenerator) Generate(ctx context.Context, destination string, durationDays int) ([]domain.Day, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.days, nil
}

func twoDays() []domain.Day {
	return []domain.Day{
		{Day: 1, Theme: "Arrival", Activities: []domain.Activity{
			{Time: domain.SlotMorning, Description: "Check in", Location: "Hotel"},
			{Time: domain.SlotAfternoon, Description: "Walk", Location: "Center"},
			{Time: domain.SlotEvening, Description: "Dinner", Location: "Bistro"},
		}},
		{Day: 2, Theme: "Museums", Activities: []domain.Activity{
			{Time: domain.SlotMorning, Description: "Gallery", Location: "Museum quarter"},
			{Time: domain.SlotAfternoon, Description: "Lunch", Location: "Market"},
			{Time: domain.SlotEvening, Description: "Concert", Location: "Opera"},
		}},
	}
}

func newTestOrchestrator(t *testing.T, store Store, gen Generator) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Options{Store: store, Generator: gen})
	if err != nil {
		t.Fatalf("NewOrchestrator returned error: %v", err)
	}
	return o
}

func waitIdle(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.Wait(ctx); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
}

func TestSubmitCreatesReadableProcessingJob(t *testing.T) {
	store := newFakeStore()
	// Generator that blocks until released, so the processing snapshot is
	// observable deterministically.
	release := make(chan struct{})
	gen := &blockingGenerator{release: release, days: twoDays()}
	o := newTestOrchestrator(t, store, gen)

	jobID, err := o.Submit(context.Background(), "Madrid", 2)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if jobID == "" {
		t.Fatal("Submit returned empty jobID")
	}

	job, err := o.Status(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if job.Status != domain.StatusProcessing {
		t.Fatalf("status = %q, want processing", job.Status)
	}
	if len(job.Itinerary) != 0 || job.Error != "" || job.CompletedAt != nil {
		t.Fatalf("fresh job carries terminal data: %+v", job)
	}

	close(release)
	waitIdle(t, o)
}

type blockingGenerator struct {
	release <-chan struct{}
	days    []domain.Day
	err     error
}

func (g *blockingGenerator) Generate(ctx context.Context, destination string, durationDays int) ([]domain.Day, error) {
	<-g.release
	if g.err != nil {
		return nil, g.err
	}
	return g.days, nil
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, store, &fakeGenerator{days: twoDays()})

	cases := []struct {
		name        string
		destination string
		days        int
	}{
		{"empty destination", "", 3},
		{"blank destination", "   ", 3},
		{"zero days", "Madrid", 0},
		{"negative days", "Madrid", -2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := o.Submit(context.Background(), tc.destination, tc.days)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
	if store.createCalls != 0 {
		t.Fatalf("store saw %d create calls, want 0 for rejected input", store.createCalls)
	}
}

func TestSubmitPropagatesInitialWriteFailure(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("store down")
	o := newTestOrchestrator(t, store, &fakeGenerator{days: twoDays()})

	_, err := o.Submit(context.Background(), "Madrid", 2)
	if err == nil || errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want persistence failure", err)
	}
	waitIdle(t, o)
	if store.patchCalls != 0 {
		t.Fatalf("background task ran despite failed create: %d patches", store.patchCalls)
	}
}

func TestJobCompletesWithItinerary(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, store, &fakeGenerator{days: twoDays()})

	jobID, err := o.Submit(context.Background(), "Madrid", 2)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	waitIdle(t, o)

	job, ok := store.snapshot(jobID)
	if !ok {
		t.Fatal("job disappeared")
	}
	if job.Status != domain.StatusCompleted {
		t.Fatalf("status = %q, want completed", job.Status)
	}
	if len(job.Itinerary) != 2 {
		t.Fatalf("itinerary length = %d, want 2", len(job.Itinerary))
	}
	if job.Error != "" {
		t.Fatalf("error = %q, want empty", job.Error)
	}
	if job.CompletedAt == nil {
		t.Fatal("completedAt not set")
	}
}

func TestJobFailsWithGenerationError(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, store, &fakeGenerator{err: errors.New("malformed_output: completion is not valid JSON")})

	jobID, err := o.Submit(context.Background(), "Madrid", 2)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	waitIdle(t, o)

	job, _ := store.snapshot(jobID)
	if job.Status != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "malformed_output") {
		t.Fatalf("error = %q, want generation diagnostic", job.Error)
	}
	if len(job.Itinerary) != 0 {
		t.Fatalf("failed job carries itinerary: %+v", job.Itinerary)
	}
}

func TestTerminalWriteFailureLeavesJobProcessing(t *testing.T) {
	store := newFakeStore()
	store.patchErr = errors.New("store down")
	o := newTestOrchestrator(t, store, &fakeGenerator{days: twoDays()})

	jobID, err := o.Submit(context.Background(), "Madrid", 2)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	waitIdle(t, o)

	job, _ := store.snapshot(jobID)
	if job.Status != domain.StatusProcessing {
		t.Fatalf("status = %q, want processing (terminal write is best-effort)", job.Status)
	}
}

func TestStatusUnknownJobReturnsNotFound(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, store, &fakeGenerator{days: twoDays()})

	_, err := o.Status(context.Background(), "never-submitted")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
