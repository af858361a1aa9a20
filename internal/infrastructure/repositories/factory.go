package repositories

import (
	"context"

	"streamctl/internal/core/ports"
	"streamctl/internal/infrastructure/repositories/file"
	"streamctl/internal/infrastructure/repositories/memory"
	redisrepo "streamctl/internal/infrastructure/repositories/redis"
	"streamctl/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates document stores with fallback support. The
// setup document always comes from disk; config and tokens use the
// configured backend.
type RepositoryFactory struct {
	backend     string
	files       *file.DocumentStore
	redisClient *redis.Client
	redisPrefix string
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		backend:     cfg.Storage.Backend,
		files:       file.NewDocumentStore(cfg.Storage.Dir, file.WithFileName(ports.DocumentSetup, cfg.Storage.SetupFile)),
		redisPrefix: cfg.Redis.KeyPrefix,
		logger:      logger,
	}

	if factory.backend == "redis" {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			cfg.Redis.KeyPrefix,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to file documents",
				"error", err,
				"dir", cfg.Storage.Dir,
			)
			factory.backend = "file"
		} else {
			factory.redisClient = client
		}
	}

	logger.Infow("document storage selected", "backend", factory.backend)
	return factory, nil
}

// Backend reports the backend in use after any fallback.
func (f *RepositoryFactory) Backend() string {
	return f.backend
}

// CreateSetupStore returns the store the device setup document is read from.
func (f *RepositoryFactory) CreateSetupStore() ports.DocumentStore {
	return f.files
}

// CreateStateStore returns the store for the config and token documents.
func (f *RepositoryFactory) CreateStateStore() ports.DocumentStore {
	switch {
	case f.backend == "redis" && f.redisClient != nil:
		return redisrepo.NewDocumentStore(f.redisClient, f.redisPrefix)
	case f.backend == "memory":
		return memory.NewDocumentStore()
	default:
		return f.files
	}
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks that the state backend is reachable.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	return f.CreateStateStore().Ping(ctx)
}
