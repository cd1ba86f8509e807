package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"formbuilder/api/internal/forms"
	"go.uber.org/zap"
)

const (
	formPrefix        = "form:"
	generationPrefix  = "form-gen:"
	unprocessedPrefix = "unprocessed:"

	minGenerationTTL = time.Minute
)

// FormCache holds the latest record per template id. Failures are logged and
// reported as misses so callers fall back to persistence.
//
// Every Invalidate bumps a per-id generation. Read-through callers take the
// generation before loading and pass it to Fill, which drops the record if an
// invalidation landed in between.
type FormCache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

func NewFormCache(store Store, ttl time.Duration, logger *zap.Logger) *FormCache {
	if store == nil {
		store = Disabled{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormCache{store: store, ttl: ttl, logger: logger}
}

func (c *FormCache) Available() bool {
	return c.store.Available()
}

// Check returns the cached record for id, if any.
func (c *FormCache) Check(ctx context.Context, id string) (*forms.Record, bool) {
	if !c.store.Available() {
		return nil, false
	}
	data, ok, err := c.store.Get(ctx, formPrefix+id)
	if err != nil {
		c.logger.Warn("form cache read failed", zap.String("form_id", id), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var record forms.Record
	if err := json.Unmarshal(data, &record); err != nil {
		c.logger.Warn("form cache entry unreadable", zap.String("form_id", id), zap.Error(err))
		c.Invalidate(ctx, id)
		return nil, false
	}
	return &record, true
}

// Generation returns the invalidation count for id, or -1 when it cannot be
// read. Fill never writes for a negative generation.
func (c *FormCache) Generation(ctx context.Context, id string) int64 {
	if !c.store.Available() {
		return -1
	}
	generation, err := c.store.Counter(ctx, generationPrefix+id)
	if err != nil {
		c.logger.Warn("form cache generation read failed", zap.String("form_id", id), zap.Error(err))
		return -1
	}
	return generation
}

// Fill stores a record loaded from persistence unless id was invalidated
// since generation was taken.
func (c *FormCache) Fill(ctx context.Context, record forms.Record, generation int64) {
	if !c.store.Available() || generation < 0 {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		c.logger.Warn("form cache encode failed", zap.String("form_id", record.ID), zap.Error(err))
		return
	}
	written, err := c.store.SetIfCounter(ctx, formPrefix+record.ID, data, c.ttl, generationPrefix+record.ID, generation)
	if err != nil {
		c.logger.Warn("form cache write failed", zap.String("form_id", record.ID), zap.Error(err))
		return
	}
	if !written {
		c.logger.Debug("form cache fill skipped after invalidation", zap.String("form_id", record.ID))
	}
}

func (c *FormCache) Invalidate(ctx context.Context, id string) {
	if !c.store.Available() {
		return
	}
	if err := c.store.Incr(ctx, generationPrefix+id, c.generationTTL()); err != nil {
		c.logger.Warn("form cache generation bump failed", zap.String("form_id", id), zap.Error(err))
	}
	if err := c.store.Delete(ctx, formPrefix+id); err != nil {
		c.logger.Warn("form cache invalidate failed", zap.String("form_id", id), zap.Error(err))
	}
}

// generationTTL keeps the counter alive at least as long as an entry.
func (c *FormCache) generationTTL() time.Duration {
	return max(c.ttl, minGenerationTTL)
}

// CountCache holds the number of unprocessed submissions per template.
type CountCache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

func NewCountCache(store Store, ttl time.Duration, logger *zap.Logger) *CountCache {
	if store == nil {
		store = Disabled{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CountCache{store: store, ttl: ttl, logger: logger}
}

func (c *CountCache) Unprocessed(ctx context.Context, id string) (int, bool) {
	if !c.store.Available() {
		return 0, false
	}
	data, ok, err := c.store.Get(ctx, unprocessedPrefix+id)
	if err != nil {
		c.logger.Warn("count cache read failed", zap.String("form_id", id), zap.Error(err))
		return 0, false
	}
	if !ok {
		return 0, false
	}
	count, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, false
	}
	return count, true
}

func (c *CountCache) SetUnprocessed(ctx context.Context, id string, count int) {
	if !c.store.Available() {
		return
	}
	if err := c.store.Set(ctx, unprocessedPrefix+id, []byte(strconv.Itoa(count)), c.ttl); err != nil {
		c.logger.Warn("count cache write failed", zap.String("form_id", id), zap.Error(err))
	}
}

func (c *CountCache) InvalidateUnprocessed(ctx context.Context, id string) {
	if !c.store.Available() {
		return
	}
	if err := c.store.Delete(ctx, unprocessedPrefix+id); err != nil {
		c.logger.Warn("count cache invalidate failed", zap.String("form_id", id), zap.Error(err))
	}
}
