package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/otelvault/otelvault/internal/config"
)

// Open resolves the configured backend and returns a ready Store. The
// choice is made once at startup; unrecognized names and PostgreSQL
// backends without a DSN fail here so the process never starts partially
// configured.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case config.BackendMemory:
		logger.Info("storage backend ready", zap.String("backend", cfg.Backend))
		return NewMemoryStore(), nil

	case config.BackendStandard:
		if !cfg.DSN.IsSet() {
			return nil, fmt.Errorf("backend %q: %w", cfg.Backend, ErrMissingDSN)
		}
		store, err := NewPostgresStore(ctx, cfg.DSN.Value(), logger)
		if err != nil {
			return nil, err
		}
		logger.Info("storage backend ready", zap.String("backend", cfg.Backend))
		return store, nil

	case config.BackendBulk, config.BackendHighPerformance:
		if !cfg.DSN.IsSet() {
			return nil, fmt.Errorf("backend %q: %w", cfg.Backend, ErrMissingDSN)
		}
		store, err := NewBulkStore(ctx, cfg.DSN.Value(), logger)
		if err != nil {
			return nil, err
		}
		logger.Info("storage backend ready", zap.String("backend", cfg.Backend))
		return store, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
