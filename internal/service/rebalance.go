package service

import (
	"context"

	"github.com/carteira-app/carteira-bfa-go/internal/domain"
	"github.com/carteira-app/carteira-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var rebalanceTracer = otel.Tracer("service/rebalance")

// RebalanceService renders the backend's rebalancing recommendation.
// No recommendation math happens here.
type RebalanceService struct {
	fetcher port.RebalanceFetcher
	logger  *zap.Logger
}

// NewRebalanceService creates the rebalance service.
func NewRebalanceService(fetcher port.RebalanceFetcher, logger *zap.Logger) *RebalanceService {
	return &RebalanceService{fetcher: fetcher, logger: logger}
}

// GetPlan returns the current rebalance plan for the user.
func (s *RebalanceService) GetPlan(ctx context.Context, userID string) (*domain.RebalancePlan, error) {
	ctx, span := rebalanceTracer.Start(ctx, "Rebalance.GetPlan")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	return s.fetcher.GetRebalancePlan(ctx, userID)
}
