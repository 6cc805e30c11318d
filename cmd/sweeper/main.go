package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/firestore"
	"server/internal/infra"
	"server/internal/infra/google"
	"server/internal/jobs"
)

// One-shot repair pass for jobs stuck in processing. Meant to run on a
// schedule (cron, Cloud Scheduler) alongside the API.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	minter, err := google.NewMinter(google.Options{
		Email:         cfg.ServiceAccountEmail,
		PrivateKeyPEM: cfg.ServiceAccountKey,
		TokenURL:      cfg.GoogleTokenURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build token minter")
	}

	store, err := firestore.NewClient(firestore.Options{
		ProjectID: cfg.FirestoreProjectID,
		BaseURL:   cfg.FirestoreBaseURL,
		Tokens:    minter,
		Logger:    &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build document store client")
	}

	sweeper, err := jobs.NewSweeper(jobs.SweeperOptions{
		Store:      store,
		StaleAfter: cfg.SweeperStaleAfter,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build sweeper")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repaired, err := sweeper.Sweep(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweep failed")
	}
	logger.Info().Int("repaired", repaired).Msg("sweep finished")
}
