// Package reload reacts to index_built events by reloading the searcher's
// index and dropping cached results computed against the old one.
package reload

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

type Reloader interface {
	Reload(ctx context.Context) (bool, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

type Handler struct {
	loader Reloader
	cache  Invalidator
	logger *slog.Logger
}

// New returns a handler reloading through loader. cache may be nil.
func New(loader Reloader, cache Invalidator) *Handler {
	return &Handler{
		loader: loader,
		cache:  cache,
		logger: slog.Default().With("component", "index-reload"),
	}
}

// Handle returns the consumer callback. Failures are logged and the message
// is acknowledged: the loader keeps serving the previous index and the next
// build event retries.
func (h *Handler) Handle() kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		event, err := analytics.DecodeEvent(value)
		if err != nil {
			h.logger.Warn("skipping undecodable index event", "key", string(key), "error", err)
			return nil
		}
		built, ok := event.(analytics.IndexEvent)
		if !ok {
			return nil
		}
		h.Apply(ctx, built)
		return nil
	}
}

// Apply reloads the index for e and reports whether the active index
// changed.
func (h *Handler) Apply(ctx context.Context, e analytics.IndexEvent) bool {
	log := h.logger.With("fingerprint", e.Fingerprint, "path", e.Path)
	changed, err := h.loader.Reload(ctx)
	if err != nil {
		log.Error("reload after index build failed", "error", err)
		return false
	}
	if !changed {
		log.Debug("index build did not change the active index")
		return false
	}
	if h.cache != nil {
		deleted, err := h.cache.Invalidate(ctx)
		if err != nil {
			log.Warn("cache invalidation after reload failed", "error", err)
		} else {
			log.Info("index reloaded", "keys_invalidated", deleted)
		}
		return true
	}
	log.Info("index reloaded")
	return true
}
