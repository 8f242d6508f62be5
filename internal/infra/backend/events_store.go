package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/carteira-app/carteira-bfa-go/internal/domain"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// EventStore implementation — corporate events
// ============================================================

// ListEvents fetches the corporate events applied to the user's assets.
func (c *Client) ListEvents(ctx context.Context, userID string) ([]domain.CorporateEvent, error) {
	ctx, span := tracer.Start(ctx, "Backend.ListEvents")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var events []domain.CorporateEvent

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("users/%s/events", userID))
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				events = []domain.CorporateEvent{}
				return nil
			}

			var rows []domain.CorporateEvent
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode events: %w", err)
			}

			events = rows
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "backend/events", Err: err}
	}

	return events, nil
}

// ApplyEvent asks the backend to apply a ratio adjustment to an asset.
// The ratio math runs server-side; positions must be re-fetched after.
// Not retried: applying a split twice would corrupt quantities.
func (c *Client) ApplyEvent(ctx context.Context, userID string, req *domain.ApplyEventRequest) (*domain.CorporateEvent, error) {
	ctx, span := tracer.Start(ctx, "Backend.ApplyEvent")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("event.asset_code", req.AssetCode),
		attribute.String("event.type", req.EventType),
	)

	data := map[string]any{
		"asset_code": req.AssetCode,
		"event_type": req.EventType,
		"ratio":      req.Ratio,
		"event_date": req.EventDate,
	}

	body, err := c.doPost(ctx, fmt.Sprintf("users/%s/events", userID), data)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "backend/events", Err: err}
	}

	var event domain.CorporateEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, &domain.ErrExternalService{
			Service: "backend/events",
			Err:     fmt.Errorf("failed to decode event: %w", err),
		}
	}
	return &event, nil
}

// ============================================================
// RebalanceFetcher implementation
// ============================================================

// GetRebalancePlan fetches the backend's rebalancing recommendation.
func (c *Client) GetRebalancePlan(ctx context.Context, userID string) (*domain.RebalancePlan, error) {
	ctx, span := tracer.Start(ctx, "Backend.GetRebalancePlan")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var plan *domain.RebalancePlan

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("users/%s/rebalance", userID))
			if err != nil {
				return err
			}

			if body == nil {
				return &domain.ErrNotFound{Resource: "rebalance_plan", ID: userID}
			}

			var p domain.RebalancePlan
			if err := json.Unmarshal(body, &p); err != nil {
				return fmt.Errorf("failed to decode rebalance plan: %w", err)
			}

			plan = &p
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "backend/rebalance", Err: err}
	}

	return plan, nil
}
