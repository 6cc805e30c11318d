package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
)

// JobService is the orchestrator surface the handlers need.
type JobService interface {
	Submit(ctx context.Context, destination string, durationDays int) (string, error)
	Status(ctx context.Context, jobID string) (*domain.Job, error)
}

// App carries handler dependencies.
type App struct {
	Jobs   JobService
	Logger infra.Logger
}

func NewApp(jobs JobService, logger infra.Logger) *App {
	return &App{Jobs: jobs, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}
