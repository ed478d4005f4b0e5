package main

import (
	"context"
	"log"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/persistence"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/seed"
)

func main() {
	seedFile := pflag.String("seed-file", "seed/seed.yaml", "path to the YAML seed document")
	migrate := pflag.Bool("migrate", true, "apply SQL migrations before seeding")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	doc, err := seed.Load(*seedFile)
	if err != nil {
		logger.Fatal("failed to load seed file", zap.String("path", *seedFile), zap.Error(err))
	}

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if *migrate {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	pool := pg.PoolHandle()
	err = seed.Apply(ctx, doc,
		repository.NewUserRepository(pool),
		repository.NewCategoryRepository(pool),
		cfg.Auth.BcryptCost,
		logger)
	if err != nil {
		logger.Fatal("seeding failed", zap.Error(err))
	}
	logger.Info("seed complete",
		zap.Int("users", len(doc.Users)),
		zap.Int("categories", len(doc.Categories)))
}
