package storage

import (
	"context"
	"fmt"

	"github.com/faraday/faraday/internal/config"
	"github.com/faraday/faraday/internal/storage/local"
	"github.com/faraday/faraday/internal/storage/memory"
	"github.com/faraday/faraday/internal/storage/postgres"
	s3backend "github.com/faraday/faraday/internal/storage/s3"
	"github.com/faraday/faraday/internal/storage/sqlite"
)

// Open creates the Backend selected by cfg.StorageBackend.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case "local":
		return local.New(local.Config{
			RootPath:   cfg.LocalStoragePath,
			CreateDirs: true,
		})
	case "s3":
		return s3backend.NewBackend(ctx, s3backend.BackendConfig{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	case "postgres":
		return postgres.New(ctx, cfg.DatabaseURL)
	case "sqlite":
		return sqlite.New(ctx, cfg.SQLitePath)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.StorageBackend)
	}
}
