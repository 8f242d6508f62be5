package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/carteira-app/carteira-bfa-go/internal/domain"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// NoteStore implementation — brokerage note upload + listing
// ============================================================

// UploadNote sends a brokerage note PDF to the backend parser.
// Uploads are not retried: the backend may have accepted a request whose
// response was lost, and re-sending would duplicate trades.
func (c *Client) UploadNote(ctx context.Context, userID, filename string, file io.Reader) (*domain.BrokerageNote, error) {
	ctx, span := tracer.Start(ctx, "Backend.UploadNote")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("note.filename", filename),
	)

	body, err := c.doUpload(ctx, fmt.Sprintf("users/%s/notes", userID), "file", filename, file)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "backend/notes", Err: err}
	}

	var note domain.BrokerageNote
	if err := json.Unmarshal(body, &note); err != nil {
		return nil, &domain.ErrExternalService{
			Service: "backend/notes",
			Err:     fmt.Errorf("failed to decode note: %w", err),
		}
	}
	return &note, nil
}

// ListNotes fetches the user's uploaded notes with their parsed trades.
func (c *Client) ListNotes(ctx context.Context, userID string) ([]domain.BrokerageNote, error) {
	ctx, span := tracer.Start(ctx, "Backend.ListNotes")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var notes []domain.BrokerageNote

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("users/%s/notes", userID))
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				notes = []domain.BrokerageNote{}
				return nil
			}

			var rows []domain.BrokerageNote
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode notes: %w", err)
			}

			notes = rows
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "backend/notes", Err: err}
	}

	return notes, nil
}
