package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"server/internal/domain"
)

type fakeSweeperStore struct {
	stale     []domain.Job
	staleErr  error
	patched   map[string]string
	patchFail map[string]bool
	cutoff    time.Time
	limit     int
}

func (s *fakeSweeperStore) StaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]domain.Job, error) {
	s.cutoff = olderThan
	s.limit = limit
	if s.staleErr != nil {
		return nil, s.staleErr
	}
	return s.stale, nil
}

func (s *fakeSweeperStore) PatchTerminal(ctx context.Context, jobID string, status domain.Status, itinerary []domain.Day, errMsg string, completedAt time.Time) error {
	if s.patchFail[jobID] {
		return errors.New("patch failed")
	}
	if s.patched == nil {
		s.patched = make(map[string]string)
	}
	if status != domain.StatusFailed {
		return errors.New("sweeper must only mark jobs failed")
	}
	s.patched[jobID] = errMsg
	return nil
}

func TestSweepMarksStaleJobsFailed(t *testing.T) {
	store := &fakeSweeperStore{stale: []domain.Job{
		{JobID: "old-1", Status: domain.StatusProcessing, CreatedAt: time.Now().Add(-2 * time.Hour)},
		{JobID: "old-2", Status: domain.StatusProcessing, CreatedAt: time.Now().Add(-3 * time.Hour)},
	}}
	sweeper, err := NewSweeper(SweeperOptions{Store: store, StaleAfter: time.Hour})
	if err != nil {
		t.Fatalf("NewSweeper returned error: %v", err)
	}

	repaired, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if repaired != 2 {
		t.Fatalf("repaired = %d, want 2", repaired)
	}
	for _, id := range []string{"old-1", "old-2"} {
		if msg, ok := store.patched[id]; !ok || msg != stuckJobMessage {
			t.Fatalf("job %s not repaired correctly: %q", id, msg)
		}
	}
	if time.Since(store.cutoff) < time.Hour {
		t.Fatalf("cutoff %v is not at least the staleness threshold in the past", store.cutoff)
	}
	if store.limit != 100 {
		t.Fatalf("limit = %d, want default 100", store.limit)
	}
}

func TestSweepSkipsFailedPatchesAndContinues(t *testing.T) {
	store := &fakeSweeperStore{
		stale: []domain.Job{
			{JobID: "old-1", Status: domain.StatusProcessing},
			{JobID: "old-2", Status: domain.StatusProcessing},
		},
		patchFail: map[string]bool{"old-1": true},
	}
	sweeper, err := NewSweeper(SweeperOptions{Store: store})
	if err != nil {
		t.Fatalf("NewSweeper returned error: %v", err)
	}

	repaired, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("repaired = %d, want 1", repaired)
	}
	if _, ok := store.patched["old-2"]; !ok {
		t.Fatal("old-2 should have been repaired despite old-1 failing")
	}
}

func TestSweepPropagatesQueryFailure(t *testing.T) {
	store := &fakeSweeperStore{staleErr: errors.New("query failed")}
	sweeper, err := NewSweeper(SweeperOptions{Store: store})
	if err != nil {
		t.Fatalf("NewSweeper returned error: %v", err)
	}

	if _, err := sweeper.Sweep(context.Background()); err == nil {
		t.Fatal("expected error from failed query")
	}
}
