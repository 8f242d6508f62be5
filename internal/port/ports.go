// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"io"
	"time"

	"github.com/carteira-app/carteira-bfa-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	DeletePrefix(prefix string)
}

// UserStore defines user and credential operations against the backend.
type UserStore interface {
	CreateUser(ctx context.Context, req *domain.CreateUserRequest, passwordHash string) (*domain.User, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserByCPF(ctx context.Context, cpf string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, updates map[string]any) (*domain.User, error)

	// Credentials
	GetCredentials(ctx context.Context, userID string) (*domain.Credential, error)
	UpdateCredentials(ctx context.Context, userID string, updates map[string]any) error

	// Refresh tokens
	StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}

// PositionFetcher retrieves position lists from the backend.
// The combined portfolio view is assembled client-side from the two lists.
type PositionFetcher interface {
	ListFixedIncome(ctx context.Context, userID string) ([]domain.Position, error)
	ListCrypto(ctx context.Context, userID string) ([]domain.Position, error)
}

// NoteStore uploads brokerage notes to the backend parser and lists results.
type NoteStore interface {
	UploadNote(ctx context.Context, userID, filename string, file io.Reader) (*domain.BrokerageNote, error)
	ListNotes(ctx context.Context, userID string) ([]domain.BrokerageNote, error)
}

// EventStore lists and applies corporate events through the backend.
type EventStore interface {
	ListEvents(ctx context.Context, userID string) ([]domain.CorporateEvent, error)
	ApplyEvent(ctx context.Context, userID string, req *domain.ApplyEventRequest) (*domain.CorporateEvent, error)
}

// RebalanceFetcher retrieves the backend's rebalancing recommendation.
type RebalanceFetcher interface {
	GetRebalancePlan(ctx context.Context, userID string) (*domain.RebalancePlan, error)
}
