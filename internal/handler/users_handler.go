package handler

import (
	"encoding/json"
	"net/http"

	"github.com/carteira-app/carteira-bfa-go/internal/domain"
	"github.com/carteira-app/carteira-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Usuários — /v1/users/*
// ============================================================

// pathUserID returns the userId path parameter after checking it matches
// the authenticated subject. Cross-user access is rejected outright.
func pathUserID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return "", false
	}
	if sub := UserIDFromContext(r.Context()); sub != userID {
		handleServiceError(w, &domain.ErrForbidden{Action: "access another user's data"}, logger)
		return "", false
	}
	return userID, true
}

func createUserHandler(userSvc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users")
		defer span.End()

		var req domain.CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, err := userSvc.CreateUser(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, user)
	}
}

func getUserHandler(userSvc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}")
		defer span.End()

		userID, ok := pathUserID(w, r, logger)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		user, err := userSvc.GetUser(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

func updateProfileHandler(userSvc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/users/{userId}/profile")
		defer span.End()

		userID, ok := pathUserID(w, r, logger)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		var req domain.UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, err := userSvc.UpdateProfile(ctx, userID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}
