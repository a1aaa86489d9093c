// Package bootstrap establishes runtime dependencies for the command-line
// entry points.
package bootstrap

import (
	"fmt"
	"log"

	"prok/internal/cache"
	"prok/internal/config"
	"prok/internal/database"
	"prok/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo populates the database with demo data after connecting.
	SeedDemo bool
}

// InitRuntime connects to the database and Redis and optionally seeds demo
// data. The Redis client is nil when the server is unreachable; callers fall
// back to in-process caching.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: redis unavailable: %v", err)
		redisClient = nil
	}

	if opts.SeedDemo {
		if err := seed.Seed(db, seed.Options{NumUsers: 10, NumPosts: 40, NumMessages: 20}); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, redisClient, nil
}
