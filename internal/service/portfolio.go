package service

import (
	"context"
	"fmt"
	"time"

	"github.com/carteira-app/carteira-bfa-go/internal/aggregate"
	"github.com/carteira-app/carteira-bfa-go/internal/domain"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/observability"
	"github.com/carteira-app/carteira-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/portfolio")

// PositionQuery selects the optional aggregation steps for a position view.
type PositionQuery struct {
	MergeFunds      bool
	IncludeEarnings bool
}

// PortfolioService fetches positions from the backend, caches them per user
// and turns them into grouped view models through the aggregate package.
type PortfolioService struct {
	positions port.PositionFetcher
	cache     port.Cache[[]domain.Position]
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewPortfolioService creates the portfolio service with all dependencies injected.
func NewPortfolioService(
	positions port.PositionFetcher,
	cache port.Cache[[]domain.Position],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PortfolioService {
	return &PortfolioService{
		positions: positions,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

// GetPositions returns the combined portfolio grouped by investment type,
// with Tesouro Direto split into sub-type buckets. Fixed-income and crypto
// lists are fetched concurrently on cache miss.
func (s *PortfolioService) GetPositions(ctx context.Context, userID string, q PositionQuery) ([]aggregate.Bucket, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.GetPositions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("positions", time.Since(start))
	}()

	var fixed, crypto []domain.Position

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.fetchFixedIncome(gCtx, userID)
		if err != nil {
			return err
		}
		fixed = p
		return nil
	})
	g.Go(func() error {
		p, err := s.fetchCrypto(gCtx, userID)
		if err != nil {
			return err
		}
		crypto = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]domain.Position, 0, len(fixed)+len(crypto))
	all = append(all, fixed...)
	all = append(all, crypto...)

	return aggregate.Group(all, aggregate.GroupOptions{
		MergeFunds:      q.MergeFunds,
		ExcludeEarnings: !q.IncludeEarnings,
		SplitCategories: map[string]bool{domain.InvestmentTesouroDireto: true},
	}), nil
}

// GetFixedIncome returns fixed-income positions grouped by investment type,
// Tesouro Direto split by sub-type, duplicate funds merged.
func (s *PortfolioService) GetFixedIncome(ctx context.Context, userID string) ([]aggregate.Bucket, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.GetFixedIncome")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("fixed_income", time.Since(start))
	}()

	positions, err := s.fetchFixedIncome(ctx, userID)
	if err != nil {
		return nil, err
	}

	return aggregate.Group(positions, aggregate.GroupOptions{
		MergeFunds:      true,
		ExcludeEarnings: true,
		SplitCategories: map[string]bool{domain.InvestmentTesouroDireto: true},
	}), nil
}

// GetCrypto returns crypto positions as flat buckets.
func (s *PortfolioService) GetCrypto(ctx context.Context, userID string) ([]aggregate.Bucket, error) {
	ctx, span := tracer.Start(ctx, "Portfolio.GetCrypto")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("crypto", time.Since(start))
	}()

	positions, err := s.fetchCrypto(ctx, userID)
	if err != nil {
		return nil, err
	}

	return aggregate.Group(positions, aggregate.GroupOptions{}), nil
}

// fetchFixedIncome is the cache-aside read of the fixed-income list.
func (s *PortfolioService) fetchFixedIncome(ctx context.Context, userID string) ([]domain.Position, error) {
	cacheKey := fmt.Sprintf("positions:%s:fixed", userID)
	if cached, ok := s.cache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit("positions")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("positions")

	positions, err := s.positions.ListFixedIncome(ctx, userID)
	if err != nil {
		s.logger.Error("failed to fetch fixed-income positions",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("positions")
		return nil, fmt.Errorf("fixed-income fetch: %w", err)
	}
	s.cache.Set(cacheKey, positions)
	return positions, nil
}

// fetchCrypto is the cache-aside read of the crypto list.
func (s *PortfolioService) fetchCrypto(ctx context.Context, userID string) ([]domain.Position, error) {
	cacheKey := fmt.Sprintf("positions:%s:crypto", userID)
	if cached, ok := s.cache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit("positions")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("positions")

	positions, err := s.positions.ListCrypto(ctx, userID)
	if err != nil {
		s.logger.Error("failed to fetch crypto positions",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("positions")
		return nil, fmt.Errorf("crypto fetch: %w", err)
	}
	s.cache.Set(cacheKey, positions)
	return positions, nil
}
