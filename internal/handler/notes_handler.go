package handler

import (
	"encoding/json"
	"net/http"

	"github.com/carteira-app/carteira-bfa-go/internal/domain"
	"github.com/carteira-app/carteira-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Notas de corretagem — /v1/users/{userId}/notes
// ============================================================

func uploadNoteHandler(noteSvc *service.NoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/notes")
		defer span.End()

		userID, ok := pathUserID(w, r, logger)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Arquivo 'file' é obrigatório")
			return
		}
		defer file.Close()

		note, err := noteSvc.Upload(ctx, userID, header.Filename, header.Size, file)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, note)
	}
}

func listNotesHandler(noteSvc *service.NoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/notes")
		defer span.End()

		userID, ok := pathUserID(w, r, logger)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		notes, err := noteSvc.List(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if notes == nil {
			notes = []domain.BrokerageNote{}
		}

		writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
	}
}

// ============================================================
// Eventos corporativos — /v1/users/{userId}/events
// ============================================================

func listEventsHandler(eventSvc *service.EventService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/events")
		defer span.End()

		userID, ok := pathUserID(w, r, logger)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		events, err := eventSvc.List(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if events == nil {
			events = []domain.CorporateEvent{}
		}

		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	}
}

func applyEventHandler(eventSvc *service.EventService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/events")
		defer span.End()

		userID, ok := pathUserID(w, r, logger)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		var req domain.ApplyEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		event, err := eventSvc.Apply(ctx, userID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, event)
	}
}
