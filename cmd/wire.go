package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/replytrainer/internal/aiconnectors"
	"github.com/replytrainer/internal/candidates"
	"github.com/replytrainer/internal/config"
	"github.com/replytrainer/internal/database"
	"github.com/replytrainer/internal/generation"
	"github.com/replytrainer/internal/jobqueue"
	"github.com/replytrainer/internal/logging"
	"github.com/replytrainer/internal/sessions"
	"github.com/replytrainer/internal/trainer"
	"github.com/replytrainer/internal/vision"
)

// app bundles the wired service with the resources that must be released
type app struct {
	cfg     *config.Config
	service *trainer.Service
	store   sessions.Store
	queue   *jobqueue.JobQueue
	closers []func(context.Context) error
}

// loadConfig reads and validates the config named by the global --config flag
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty, nil)

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func connectorOptions(cfg *config.Config, model string) aiconnectors.ConnectorOptions {
	return aiconnectors.ConnectorOptions{
		Provider: aiconnectors.Provider(cfg.AI.Provider),
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
		ModelConfig: aiconnectors.ModelConfig{
			Model:     model,
			MaxTokens: cfg.AI.MaxTokens,
		},
		RateLimit: cfg.AI.RateLimit,
		Burst:     cfg.AI.Burst,
	}
}

func buildApp(ctx context.Context, cfg *config.Config, withJobs bool) (*app, error) {
	a := &app{cfg: cfg}

	visionConnector, err := aiconnectors.NewConnector(ctx, connectorOptions(cfg, cfg.AI.VisionModel))
	if err != nil {
		return nil, fmt.Errorf("vision connector: %w", err)
	}
	generationConnector := visionConnector
	if cfg.AI.GenerationModel != cfg.AI.VisionModel {
		generationConnector, err = aiconnectors.NewConnector(ctx, connectorOptions(cfg, cfg.AI.GenerationModel))
		if err != nil {
			return nil, fmt.Errorf("generation connector: %w", err)
		}
	}

	policy, err := vision.ParseFailurePolicy(cfg.Vision.FailurePolicy)
	if err != nil {
		return nil, err
	}

	if err := a.openStore(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	var opts []trainer.Option
	if withJobs && cfg.Jobs.Enabled {
		if err := a.startQueue(ctx); err != nil {
			a.Close(ctx)
			return nil, err
		}
		opts = append(opts, trainer.WithRatingNotifier(a.queue))
	}

	a.service = trainer.NewService(
		vision.NewStage(visionConnector, vision.Config{
			CaptionTemperature:    cfg.Vision.CaptionTemperature,
			TranscriptTemperature: cfg.Vision.TranscriptTemperature,
			Policy:                policy,
			MaxConcurrency:        cfg.Vision.MaxConcurrency,
		}),
		generation.NewStage(generationConnector, cfg.Generation.Temperature),
		candidates.NewSanitizer(candidates.Options{
			RepairJSON:  cfg.Candidates.RepairJSON,
			CountPolicy: candidates.CountPolicy(cfg.Candidates.CountPolicy),
		}),
		a.store, a.store,
		opts...,
	)

	log.Debug().
		Str("provider", string(visionConnector.GetProvider())).
		Str("vision_model", visionConnector.GetModel()).
		Str("generation_model", generationConnector.GetModel()).
		Str("store", cfg.Store.Driver).
		Str("vision_policy", string(policy)).
		Bool("jobs", a.queue != nil).
		Msg("Trainer service ready")
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	if a.cfg.Store.Driver != "postgres" {
		a.store = sessions.NewInMemoryStore()
		return nil
	}

	dsn, err := database.ResolveURL(a.cfg.Store.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to get database URL: %w", err)
	}
	db, err := database.Open(ctx, dsn)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })

	store := sessions.NewPostgresStore(db)
	if a.cfg.Store.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}
	a.store = store
	return nil
}

func (a *app) startQueue(ctx context.Context) error {
	dsn, err := database.ResolveURL(a.cfg.Store.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to get database URL: %w", err)
	}
	pool, err := database.OpenPool(ctx, dsn)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })

	queue, err := jobqueue.New(pool, a.store, jobqueue.ConfigFromWorkers(a.cfg.Jobs.MaxWorkers))
	if err != nil {
		return err
	}
	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	a.queue = queue
	a.closers = append(a.closers, queue.Stop)
	return nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("Error during shutdown")
		}
	}
	a.closers = nil
}
