package cli

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/segura08m/InnerNode/internal/core/config"
	"github.com/segura08m/InnerNode/internal/infra/storage"
	"github.com/segura08m/InnerNode/internal/infra/storage/postgres"
	"github.com/segura08m/InnerNode/internal/infra/storage/redisstore"
)

// loadConfig is the shared entry point for admin commands.
func loadConfig() (*config.AppConfig, error) {
	_ = godotenv.Load()
	return config.Load(cfgPath)
}

// openRepos connects to the storage the config names. Admin commands work
// on persisted state, so a watcher running on in-memory storage has
// nothing for them to inspect.
func openRepos(cfg *config.AppConfig) (storage.CheckpointRepository, storage.DeadLetterRepository, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, nil, errors.New("database.url is not configured; no persisted state to inspect")
	}

	db, err := postgres.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}

	var checkpoints storage.CheckpointRepository = postgres.NewCheckpointRepo(db)
	var deadLetters storage.DeadLetterRepository = postgres.NewDeadLetterRepo(db)
	cleanup := func() { _ = db.Close() }

	if cfg.Redis.URL != "" {
		redisClient, err := redisstore.NewClient(cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		deadLetters = redisstore.NewDeadLetterRepo(redisClient)
		closeDB := cleanup
		cleanup = func() {
			_ = redisClient.Close()
			closeDB()
		}
	}

	return checkpoints, deadLetters, cleanup, nil
}
