package consumers

import (
	"context"

	"go.uber.org/zap"

	"listings-api/domain"
	"listings-api/repositories"
)

// CacheInvalidator clears this instance's search cache on every event.
// The shared tier was already invalidated by the instance that wrote.
type CacheInvalidator struct {
	cache  repositories.CacheRepository
	logger *zap.Logger
}

func NewCacheInvalidator(cache repositories.CacheRepository, logger *zap.Logger) *CacheInvalidator {
	return &CacheInvalidator{cache: cache, logger: logger}
}

func (h *CacheInvalidator) HandleEvent(_ context.Context, event domain.ListingEvent) error {
	dropped := h.cache.InvalidateLocal()
	h.logger.Debug("search cache cleared by event",
		zap.String("action", string(event.Action)),
		zap.Int("entries", dropped))
	return nil
}

// EventLogger writes every event to the log. The worker command uses it as
// an audit feed of inventory changes.
type EventLogger struct {
	logger *zap.Logger
}

func NewEventLogger(logger *zap.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

func (h *EventLogger) HandleEvent(_ context.Context, event domain.ListingEvent) error {
	h.logger.Info("listing event",
		zap.String("action", string(event.Action)),
		zap.Uints("listing_ids", event.ListingIDs),
		zap.Int("count", event.Count),
		zap.Time("occurred_at", event.OccurredAt))
	return nil
}
