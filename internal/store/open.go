package store

import (
	"context"
	"fmt"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/config"
)

// OpenBackend builds the backend selected by settings. The postgres backend
// is migrated before it is returned.
func OpenBackend(ctx context.Context, s *config.Settings) (Backend, error) {
	switch s.StoreBackend {
	case config.BackendFile, "":
		return NewFileBackend(s.DataDir), nil
	case config.BackendMemory:
		return NewMemoryBackend(nil), nil
	case config.BackendPostgres:
		b, err := NewPostgresBackend(ctx, s.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := b.Migrate(ctx); err != nil {
			_ = b.Close()
			return nil, err
		}
		return b, nil
	case config.BackendRedis:
		return NewRedisBackend(ctx, RedisOptions{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
			Prefix:   s.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported store backend %q", s.StoreBackend)
	}
}
