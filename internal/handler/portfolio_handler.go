package handler

import (
	"net/http"

	"github.com/carteira-app/carteira-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Posições — /v1/users/{userId}/positions*
// ============================================================

func getPositionsHandler(portfolioSvc *service.PortfolioService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/positions")
		defer span.End()

		userID, ok := pathUserID(w, r, logger)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		q := service.PositionQuery{
			MergeFunds:      parseBoolQuery(r, "merge_funds", true),
			IncludeEarnings: parseBoolQuery(r, "include_earnings", false),
		}

		buckets, err := portfolioSvc.GetPositions(ctx, userID, q)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"groups": buckets})
	}
}

func getFixedIncomeHandler(portfolioSvc *service.PortfolioService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/positions/fixed-income")
		defer span.End()

		userID, ok := pathUserID(w, r, logger)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		buckets, err := portfolioSvc.GetFixedIncome(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"groups": buckets})
	}
}

func getCryptoHandler(portfolioSvc *service.PortfolioService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/positions/crypto")
		defer span.End()

		userID, ok := pathUserID(w, r, logger)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		buckets, err := portfolioSvc.GetCrypto(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"groups": buckets})
	}
}

// ============================================================
// Rebalanceamento — GET /v1/users/{userId}/rebalance
// ============================================================

func getRebalanceHandler(rebalanceSvc *service.RebalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/rebalance")
		defer span.End()

		userID, ok := pathUserID(w, r, logger)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		plan, err := rebalanceSvc.GetPlan(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, plan)
	}
}
