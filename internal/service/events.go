package service

import (
	"context"
	"fmt"

	"github.com/carteira-app/carteira-bfa-go/internal/domain"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/observability"
	"github.com/carteira-app/carteira-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var eventTracer = otel.Tracer("service/events")

var validEventTypes = map[string]bool{
	"split":    true,
	"grouping": true,
	"bonus":    true,
}

// EventService proxies corporate event listing and application. The ratio
// math runs in the backend; this layer validates input and keeps the cached
// positions coherent after a mutation.
type EventService struct {
	store          port.EventStore
	positionsCache port.Cache[[]domain.Position]
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// NewEventService creates the event service with all dependencies injected.
func NewEventService(
	store port.EventStore,
	positionsCache port.Cache[[]domain.Position],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *EventService {
	return &EventService{
		store:          store,
		positionsCache: positionsCache,
		metrics:        metrics,
		logger:         logger,
	}
}

// List returns the corporate events recorded for the user's assets.
func (s *EventService) List(ctx context.Context, userID string) ([]domain.CorporateEvent, error) {
	ctx, span := eventTracer.Start(ctx, "Events.List")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	return s.store.ListEvents(ctx, userID)
}

// Apply asks the backend to apply a ratio adjustment and invalidates the
// user's cached positions so the adjusted quantities show on the next read.
func (s *EventService) Apply(ctx context.Context, userID string, req *domain.ApplyEventRequest) (*domain.CorporateEvent, error) {
	ctx, span := eventTracer.Start(ctx, "Events.Apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("event.asset_code", req.AssetCode),
		attribute.String("event.type", req.EventType),
	)

	if req.AssetCode == "" {
		return nil, &domain.ErrValidation{Field: "asset_code", Message: "Código do ativo é obrigatório"}
	}
	if !validEventTypes[req.EventType] {
		return nil, &domain.ErrValidation{Field: "event_type", Message: "Tipo de evento inválido"}
	}
	if req.Ratio <= 0 {
		return nil, &domain.ErrValidation{Field: "ratio", Message: "Proporção deve ser maior que zero"}
	}

	event, err := s.store.ApplyEvent(ctx, userID, req)
	if err != nil {
		s.metrics.IncrExternalError("events")
		return nil, fmt.Errorf("apply event: %w", err)
	}

	s.positionsCache.DeletePrefix(fmt.Sprintf("positions:%s:", userID))
	s.metrics.IncrEventApplied()

	s.logger.Info("corporate event applied",
		zap.String("user_id", userID),
		zap.String("asset_code", req.AssetCode),
		zap.String("event_type", req.EventType),
	)

	return event, nil
}
