package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"fileshelf/internal/config"
	"fileshelf/internal/database"
	"fileshelf/internal/logging"
	"fileshelf/internal/migrations"
	"fileshelf/internal/storage/driver"
)

func main() {
	bootstrapBucket := flag.Bool("bootstrap-bucket", false, "create the object store bucket if it does not exist")
	skipMigrations := flag.Bool("skip-migrations", false, "only run the bucket bootstrap")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if !*skipMigrations {
		db, err := database.Connect(ctx, cfg)
		if err != nil {
			logger.Error("connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := migrations.Apply(ctx, db); err != nil {
			logger.Error("apply migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	if *bootstrapBucket {
		store, _, err := driver.Open(ctx, cfg)
		if err != nil {
			logger.Error("open object store", "error", err)
			os.Exit(1)
		}
		if err := store.EnsureContainer(ctx); err != nil {
			logger.Error("bootstrap bucket", "error", err, "bucket", cfg.S3Bucket)
			os.Exit(1)
		}
		logger.Info("bucket ready", "driver", cfg.StorageDriver)
	}
}
