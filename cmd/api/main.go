package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/firestore"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/google"
	"server/internal/jobs"
	"server/internal/providers/itinerary"
)

func main() {
	// .env is optional; real deployments set variables in the environment.
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

	planner, err := itinerary.NewOpenAIPlanner(itinerary.Options{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build itinerary planner")
	}

	orchestrator, err := jobs.NewOrchestrator(jobs.Options{
		Store:     store,
		Generator: planner,
		Logger:    &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	app := handlers.NewApp(orchestrator, logger)
	router := httpapi.NewRouter(app, logger, cfg.RateLimitPerMin)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	// Let in-flight generation tasks land their terminal writes.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer waitCancel()
	if err := orchestrator.Wait(waitCtx); err != nil {
		logger.Warn().Err(err).Msg("background jobs still running at shutdown")
	}

	logger.Info().Msg("server stopped")
}
