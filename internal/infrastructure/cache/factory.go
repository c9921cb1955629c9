package cache

import (
	"context"
	"fmt"

	"github.com/erp/backoffice/internal/domain/draft"
	"github.com/erp/backoffice/internal/infrastructure/config"
	"go.uber.org/zap"
)

// DraftStore is a draft.Persistence that owns a connection
type DraftStore interface {
	draft.Persistence
	Ping(ctx context.Context) error
	Close() error
}

// DraftStoreFactory creates draft stores based on configuration
type DraftStoreFactory struct {
	redisConfig config.RedisConfig
	draftConfig config.DraftConfig
	logger      *zap.Logger
	connect     func(RedisConfig, string, config.DraftConfig) (DraftStore, error)
}

// DraftStoreFactoryOption is a functional option for configuring the factory
type DraftStoreFactoryOption func(*DraftStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) DraftStoreFactoryOption {
	return func(f *DraftStoreFactory) {
		f.logger = logger
	}
}

// NewDraftStoreFactory creates a new factory
func NewDraftStoreFactory(redisCfg config.RedisConfig, draftCfg config.DraftConfig, opts ...DraftStoreFactoryOption) *DraftStoreFactory {
	f := &DraftStoreFactory{
		redisConfig: redisCfg,
		draftConfig: draftCfg,
		logger:      zap.NewNop(),
		connect: func(rc RedisConfig, prefix string, dc config.DraftConfig) (DraftStore, error) {
			return NewRedisDraftStore(rc, prefix, dc.TTL)
		},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateStore returns the configured store. With draft.store=redis it tries
// Redis first and, when FallbackToMemory is set, falls back to an in-memory
// store if Redis is unreachable.
func (f *DraftStoreFactory) CreateStore() (DraftStore, error) {
	if f.draftConfig.Store == "memory" {
		f.logger.Info("using in-memory draft store")
		return NewInMemoryDraftStore(f.draftConfig.TTL), nil
	}

	store, err := f.connect(RedisConfig{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.draftConfig.KeyPrefix, f.draftConfig)
	if err == nil {
		f.logger.Info("using Redis draft store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.draftConfig.FallbackToMemory {
		return nil, fmt.Errorf("redis required for drafts but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory draft store. "+
		"Drafts will not survive a restart or be shared between instances.",
		zap.Error(err),
	)
	return NewInMemoryDraftStore(f.draftConfig.TTL), nil
}
