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
// PositionFetcher implementation
// ============================================================

// ListFixedIncome fetches fixed-income positions only.
func (c *Client) ListFixedIncome(ctx context.Context, userID string) ([]domain.Position, error) {
	return c.fetchPositions(ctx, "Backend.ListFixedIncome", userID, "positions/fixed-income")
}

// ListCrypto fetches crypto positions only.
func (c *Client) ListCrypto(ctx context.Context, userID string) ([]domain.Position, error) {
	return c.fetchPositions(ctx, "Backend.ListCrypto", userID, "positions/crypto")
}

// fetchPositions wraps the position GET in breaker + retry. Amount fields
// in the rows absorb the backend's number-or-string serialization.
func (c *Client) fetchPositions(ctx context.Context, spanName, userID, suffix string) ([]domain.Position, error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var positions []domain.Position

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("users/%s/%s", userID, suffix)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				positions = []domain.Position{}
				return nil
			}

			var rows []domain.Position
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode positions: %w", err)
			}

			positions = rows
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "backend/positions", Err: err}
	}

	return positions, nil
}
