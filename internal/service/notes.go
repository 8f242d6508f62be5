package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/carteira-app/carteira-bfa-go/internal/domain"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/observability"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/resilience"
	"github.com/carteira-app/carteira-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var noteTracer = otel.Tracer("service/notes")

// NoteService proxies brokerage note uploads to the backend parser.
// Parsing is expensive server-side, so concurrent uploads are limited by a
// bulkhead and oversized files are rejected before leaving this process.
type NoteService struct {
	store          port.NoteStore
	positionsCache port.Cache[[]domain.Position]
	bulkhead       *resilience.Bulkhead
	metrics        *observability.Metrics
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewNoteService creates the note service with all dependencies injected.
func NewNoteService(
	store port.NoteStore,
	positionsCache port.Cache[[]domain.Position],
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
	maxUploadBytes int64,
) *NoteService {
	return &NoteService{
		store:          store,
		positionsCache: positionsCache,
		bulkhead:       bulkhead,
		metrics:        metrics,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload sends one brokerage note PDF to the backend parser. On success the
// user's cached positions are dropped so the next read reflects the new trades.
func (s *NoteService) Upload(ctx context.Context, userID, filename string, size int64, file io.Reader) (*domain.BrokerageNote, error) {
	ctx, span := noteTracer.Start(ctx, "Notes.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("note.filename", filename),
		attribute.Int64("note.size_bytes", size),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("note_upload", time.Since(start))
	}()

	if size > s.maxUploadBytes {
		s.metrics.IncrNoteUpload("rejected")
		return nil, &domain.ErrUploadTooLarge{SizeBytes: size, MaxBytes: s.maxUploadBytes}
	}

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrTimeout{Operation: "note upload slot"}
	}
	defer s.bulkhead.Release()

	note, err := s.store.UploadNote(ctx, userID, filename, io.LimitReader(file, s.maxUploadBytes))
	if err != nil {
		s.logger.Error("note upload failed",
			zap.String("user_id", userID),
			zap.String("filename", filename),
			zap.Error(err),
		)
		s.metrics.IncrNoteUpload("error")
		s.metrics.IncrExternalError("notes")
		return nil, fmt.Errorf("upload note: %w", err)
	}

	// The parsed trades change positions server-side; drop every cached
	// view for this user so the next read re-fetches.
	s.positionsCache.DeletePrefix(fmt.Sprintf("positions:%s:", userID))

	s.metrics.IncrNoteUpload("success")
	s.logger.Info("note uploaded",
		zap.String("user_id", userID),
		zap.String("note_id", note.ID),
		zap.Int("trades", len(note.Trades)),
	)

	return note, nil
}

// List returns the user's uploaded notes with parsed trades.
func (s *NoteService) List(ctx context.Context, userID string) ([]domain.BrokerageNote, error) {
	ctx, span := noteTracer.Start(ctx, "Notes.List")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	return s.store.ListNotes(ctx, userID)
}
