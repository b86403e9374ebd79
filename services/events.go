package services

import (
	"context"

	"go.uber.org/zap"

	"listings-api/domain"
	"listings-api/repositories"
)

// EventPublisher envía los eventos de cambios del inventario a las otras instancias
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ListingEvent) error
}

// NoopPublisher descarta los eventos. Se usa cuando no hay broker configurado
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.ListingEvent) error { return nil }

// ChangeNotifier se llama después de cada escritura confirmada. Limpia la
// caché de búsquedas y avisa a las otras instancias para que hagan lo mismo
type ChangeNotifier struct {
	cache     repositories.CacheRepository
	publisher EventPublisher
	logger    *zap.Logger
}

func NewChangeNotifier(cache repositories.CacheRepository, publisher EventPublisher, logger *zap.Logger) *ChangeNotifier {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &ChangeNotifier{cache: cache, publisher: publisher, logger: logger}
}

// Changed nunca hace fallar la escritura previa; los errores solo se loguean
func (n *ChangeNotifier) Changed(ctx context.Context, action domain.EventAction, ids ...uint) {
	if err := n.cache.Invalidate(); err != nil {
		n.logger.Warn("search cache invalidation failed", zap.Error(err))
	}

	event := domain.NewListingEvent(action, ids...)
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Warn("publish listing event failed",
			zap.String("action", string(action)),
			zap.Int("count", event.Count),
			zap.Error(err))
	}
}
