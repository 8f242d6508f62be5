package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/carteira-app/carteira-bfa-go/internal/domain"
	"github.com/google/uuid"
)

// ============================================================
// UserStore implementation — users, credentials, refresh tokens
// ============================================================

func (c *Client) CreateUser(ctx context.Context, req *domain.CreateUserRequest, passwordHash string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Backend.CreateUser")
	defer span.End()

	userID := uuid.New().String()

	userData := map[string]any{
		"id":    userID,
		"name":  req.Name,
		"email": req.Email,
		"cpf":   req.CPF,
	}
	body, err := c.doPost(ctx, "users", userData)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	credData := map[string]any{
		"id":              uuid.New().String(),
		"user_id":         userID,
		"password_hash":   passwordHash,
		"failed_attempts": 0,
	}
	if _, err := c.doPost(ctx, "credentials", credData); err != nil {
		return nil, fmt.Errorf("create credentials: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

func (c *Client) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Backend.GetUser")
	defer span.End()

	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("users/%s", userID))
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}

	var user domain.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

func (c *Client) GetUserByCPF(ctx context.Context, cpf string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Backend.GetUserByCPF")
	defer span.End()

	path := fmt.Sprintf("users?cpf=%s&limit=1", url.QueryEscape(cpf))
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if body == nil || string(body) == "[]" {
		return nil, nil // not found is not an error for auth lookup
	}

	var rows []domain.User
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) UpdateProfile(ctx context.Context, userID string, updates map[string]any) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Backend.UpdateProfile")
	defer span.End()

	if err := c.doPatch(ctx, fmt.Sprintf("users/%s", userID), updates); err != nil {
		return nil, err
	}

	// Re-fetch updated profile
	return c.GetUser(ctx, userID)
}

// --- Credentials ---

func (c *Client) GetCredentials(ctx context.Context, userID string) (*domain.Credential, error) {
	ctx, span := tracer.Start(ctx, "Backend.GetCredentials")
	defer span.End()

	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("users/%s/credentials", userID))
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, &domain.ErrNotFound{Resource: "credentials", ID: userID}
	}

	var cred domain.Credential
	if err := json.Unmarshal(body, &cred); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &cred, nil
}

func (c *Client) UpdateCredentials(ctx context.Context, userID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Backend.UpdateCredentials")
	defer span.End()

	return c.doPatch(ctx, fmt.Sprintf("users/%s/credentials", userID), updates)
}

// --- Refresh tokens ---

func (c *Client) StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	ctx, span := tracer.Start(ctx, "Backend.StoreRefreshToken")
	defer span.End()

	data := map[string]any{
		"id":         uuid.New().String(),
		"user_id":    userID,
		"token_hash": tokenHash,
		"expires_at": expiresAt.Format(time.RFC3339),
		"revoked":    false,
	}

	_, err := c.doPost(ctx, "refresh-tokens", data)
	return err
}

func (c *Client) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	ctx, span := tracer.Start(ctx, "Backend.GetRefreshToken")
	defer span.End()

	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("refresh-tokens/%s", tokenHash))
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var token domain.RefreshToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}
	return &token, nil
}

func (c *Client) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	ctx, span := tracer.Start(ctx, "Backend.RevokeRefreshToken")
	defer span.End()

	return c.doPatch(ctx, fmt.Sprintf("refresh-tokens/%s", tokenHash), map[string]any{"revoked": true})
}

func (c *Client) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Backend.RevokeAllRefreshTokens")
	defer span.End()

	return c.doPatch(ctx, fmt.Sprintf("users/%s/refresh-tokens", userID), map[string]any{"revoked": true})
}
