// Package audiocache stores synthesized speech keyed by the hash of its text.
// Entries never expire and are never evicted.
package audiocache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"realty-assistant/internal/domain"
)

// Storage is a durable byte store addressed by cache key. Get returns
// domain.ErrNotFound for absent keys.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

type Cache struct {
	storage Storage
	logger  *slog.Logger
}

func New(storage Storage, logger *slog.Logger) (*Cache, error) {
	if storage == nil {
		return nil, errors.New("audiocache: storage must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{storage: storage, logger: logger}, nil
}

// Lookup returns the cached audio for text. Any read failure is logged and
// reported as a miss.
func (c *Cache) Lookup(ctx context.Context, text string) ([]byte, bool) {
	key := Key(text)
	data, err := c.storage.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("audio cache read failed", "key", key, "err", err)
		}
		return nil, false
	}
	c.logger.Debug("audio cache hit", "key", key, "bytes", len(data))
	return data, true
}

// Store writes audio for text, overwriting any existing entry. The error is
// logged here as well so callers may ignore it.
func (c *Cache) Store(ctx context.Context, text string, data []byte) error {
	key := Key(text)
	if err := c.storage.Put(ctx, key, data); err != nil {
		c.logger.Warn("audio cache write failed", "key", key, "err", err)
		return fmt.Errorf("audiocache: store %s: %w", key, err)
	}
	c.logger.Debug("audio cache stored", "key", key, "bytes", len(data))
	return nil
}
