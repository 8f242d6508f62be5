// Package service — UserService handles registration, login, JWT token
// management and profile updates for account holders.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/carteira-app/carteira-bfa-go/internal/cpf"
	"github.com/carteira-app/carteira-bfa-go/internal/domain"
	"github.com/carteira-app/carteira-bfa-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var userTracer = otel.Tracer("service/users")

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// UserService orchestrates user management and authentication flows.
type UserService struct {
	store      port.UserStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(store port.UserStore, jwtSecret string, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *UserService {
	return &UserService{
		store:      store,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// ============================================================
// CreateUser — POST /v1/users and POST /v1/auth/register
// ============================================================

func (s *UserService) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	ctx, span := userTracer.Start(ctx, "UserService.CreateUser")
	defer span.End()

	if strings.TrimSpace(req.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "Nome é obrigatório"}
	}
	if !strings.Contains(req.Email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "Email inválido"}
	}
	if !cpf.IsValid(req.CPF) {
		return nil, &domain.ErrValidation{Field: "cpf", Message: "CPF inválido"}
	}
	if len(req.Password) < minPasswordLength {
		return nil, &domain.ErrValidation{
			Field:   "password",
			Message: fmt.Sprintf("Senha deve ter no mínimo %d caracteres", minPasswordLength),
		}
	}

	// Store the digits only; the frontend re-applies the display mask.
	normalized := cpf.Normalize(req.CPF)

	existing, err := s.store.GetUserByCPF(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "CPF já cadastrado"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	createReq := *req
	createReq.CPF = normalized
	user, err := s.store.CreateUser(ctx, &createReq, string(hash))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("cpf", cpf.Format(normalized)),
	)

	return user, nil
}

// Register is the auth-route wrapper around CreateUser.
func (s *UserService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.RegisterResponse, error) {
	user, err := s.CreateUser(ctx, &domain.CreateUserRequest{
		Name:     req.Name,
		Email:    req.Email,
		CPF:      req.CPF,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}
	return &domain.RegisterResponse{
		UserID:  user.ID,
		Message: "Conta criada com sucesso",
	}, nil
}

// ============================================================
// GetUser — GET /v1/users/{userId}
// ============================================================

func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := userTracer.Start(ctx, "UserService.GetUser")
	defer span.End()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Render the CPF masked for display.
	user.CPF = cpf.Format(user.CPF)
	return user, nil
}

// ============================================================
// Login — POST /v1/auth/login
// ============================================================

func (s *UserService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := userTracer.Start(ctx, "UserService.Login")
	defer span.End()

	if !cpf.IsValid(req.CPF) {
		return nil, &domain.ErrValidation{Field: "cpf", Message: "CPF inválido"}
	}

	user, err := s.store.GetUserByCPF(ctx, cpf.Normalize(req.CPF))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, &domain.ErrUnauthorized{Message: "Credenciais inválidas"}
	}

	cred, err := s.store.GetCredentials(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		newAttempts := cred.FailedAttempts + 1
		s.logger.Warn("login: failed password attempt",
			zap.String("user_id", user.ID),
			zap.Int("attempts", newAttempts),
		)
		_ = s.store.UpdateCredentials(ctx, user.ID, map[string]any{"failed_attempts": newAttempts})
		return nil, &domain.ErrUnauthorized{Message: "Credenciais inválidas"}
	}

	// Reset failed attempts on successful login
	_ = s.store.UpdateCredentials(ctx, user.ID, map[string]any{
		"failed_attempts": 0,
		"last_login_at":   time.Now().Format(time.RFC3339),
	})

	return s.issueTokens(ctx, user)
}

// ============================================================
// Refresh — POST /v1/auth/refresh
// ============================================================

func (s *UserService) Refresh(ctx context.Context, req *domain.RefreshRequest) (*domain.LoginResponse, error) {
	ctx, span := userTracer.Start(ctx, "UserService.Refresh")
	defer span.End()

	tokenHash := hashToken(req.RefreshToken)

	stored, err := s.store.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if stored == nil || stored.Revoked {
		return nil, &domain.ErrUnauthorized{Message: "Token de atualização inválido"}
	}

	if stored.ExpiresAt.Before(time.Now()) {
		s.logger.Warn("refresh: expired token used", zap.String("user_id", stored.UserID))
		_ = s.store.RevokeRefreshToken(ctx, tokenHash)
		return nil, &domain.ErrUnauthorized{Message: "Token de atualização expirado"}
	}

	// Revoke old token (rotation)
	_ = s.store.RevokeRefreshToken(ctx, tokenHash)

	user, err := s.store.GetUser(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// ============================================================
// Logout — POST /v1/auth/logout
// ============================================================

func (s *UserService) Logout(ctx context.Context, userID string) error {
	ctx, span := userTracer.Start(ctx, "UserService.Logout")
	defer span.End()

	if err := s.store.RevokeAllRefreshTokens(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.logger.Info("user logged out", zap.String("user_id", userID))
	return nil
}

// ============================================================
// UpdateProfile — PUT /v1/users/{userId}/profile
// ============================================================

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *domain.UpdateProfileRequest) (*domain.User, error) {
	ctx, span := userTracer.Start(ctx, "UserService.UpdateProfile")
	defer span.End()

	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Email != "" {
		if !strings.Contains(req.Email, "@") {
			return nil, &domain.ErrValidation{Field: "email", Message: "Email inválido"}
		}
		updates["email"] = req.Email
	}

	if len(updates) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "Nenhum campo para atualizar"}
	}

	user, err := s.store.UpdateProfile(ctx, userID, updates)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	user.CPF = cpf.Format(user.CPF)
	return user, nil
}

// ============================================================
// ValidateAccessToken — used by middleware
// ============================================================

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Sub  string `json:"sub"`
	CPF  string `json:"cpf"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

func (s *UserService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}

	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "Tipo de token inválido"}
	}

	return claims, nil
}

// ============================================================
// Internal helpers
// ============================================================

func (s *UserService) issueTokens(ctx context.Context, user *domain.User) (*domain.LoginResponse, error) {
	accessToken, err := s.signAccessToken(user.ID, user.CPF)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, refreshHash, err := s.generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.store.StoreRefreshToken(ctx, user.ID, refreshHash, time.Now().Add(s.refreshTTL)); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID))

	return &domain.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.accessTTL.Seconds()),
		UserID:       user.ID,
		UserName:     user.Name,
	}, nil
}

func (s *UserService) signAccessToken(userID, userCPF string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Sub:  userID,
		CPF:  userCPF,
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "carteira-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *UserService) generateRefreshToken() (raw string, hashed string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(b)
	hashed = hashToken(raw)
	return raw, hashed, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
