package cliconfig

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bft-labs/reqguard/internal/adapters/fs"
	"github.com/bft-labs/reqguard/internal/adapters/memory"
	"github.com/bft-labs/reqguard/internal/adapters/redis"
	"github.com/bft-labs/reqguard/internal/adapters/sqlite"
	"github.com/bft-labs/reqguard/internal/ports"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore opens the durable store cfg selects. The closer releases its
// connection; it is a no-op for the file and memory stores.
func OpenStore(ctx context.Context, cfg Config) (ports.KVStore, io.Closer, error) {
	switch cfg.Store {
	case StoreFile:
		if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create state dir: %w", err)
		}
		return fs.NewStore(cfg.StateDir), nopCloser{}, nil
	case StoreRedis:
		s, err := redis.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case StoreMemory:
		return memory.NewStore(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
