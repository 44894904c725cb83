package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/walknote/backend/internal/ai"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/storage"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/styles"
)

// FreeNoteLimit caps completed notes for non-premium users.
const FreeNoteLimit = 3

const defaultAudioMIMEType = "audio/webm"

const (
	opCreateNote = "notes.create"
	opListNotes  = "notes.list"
	opUpdateNote = "notes.update"
	opDeleteNote = "notes.delete"
)

var noOpLogger = zap.NewNop()

// BlobStore uploads and removes audio objects.
type BlobStore interface {
	Upload(ctx context.Context, path string, audio []byte, contentType string) error
	Remove(ctx context.Context, path string) error
}

// RewriteClient performs the two generative-model calls of the pipeline.
type RewriteClient interface {
	Transcribe(ctx context.Context, userID string, audio []byte, mimeType string) (string, error)
	Rewrite(ctx context.Context, userID, transcript string, style styles.WritingStyle) (ai.RewriteResult, error)
}

// PremiumChecker reports whether a user has the premium flag set.
type PremiumChecker interface {
	IsPremium(ctx context.Context, userID string) (bool, error)
}

// ServiceConfig describes the dependencies of the note service.
type ServiceConfig struct {
	Repository *Repository
	Blobs      BlobStore
	AI         RewriteClient
	Premium    PremiumChecker
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns the note lifecycle: the creation pipeline plus
// owner-scoped listing, editing and deletion.
type Service struct {
	repo       *Repository
	blobs      BlobStore
	ai         RewriteClient
	premium    PremiumChecker
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("notes: repository is required")
	}
	if cfg.Blobs == nil {
		return nil, errors.New("notes: blob store is required")
	}
	if cfg.AI == nil {
		return nil, errors.New("notes: rewrite client is required")
	}
	if cfg.Premium == nil {
		return nil, errors.New("notes: premium checker is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		repo:       cfg.Repository,
		blobs:      cfg.Blobs,
		ai:         cfg.AI,
		premium:    cfg.Premium,
		clock:      clock,
		idProvider: idProvider,
		logger:     logger,
	}, nil
}

// CreateRequest carries one recording submission.
type CreateRequest struct {
	UserID   string
	StyleID  string
	Audio    []byte
	Filename string
	MIMEType string
}

// Create runs the note-creation pipeline: quota check, audio upload,
// transcription, rewrite, persistence. The upload always precedes the
// model calls and the uploaded path is retained even when they fail: a
// transcribe/rewrite failure produces a best-effort failed-status row
// referencing the audio, then a generic error to the caller. An upload
// failure aborts before any row is written.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Note, error) {
	style, ok := styles.ByID(req.StyleID)
	if !ok {
		return Note{}, newServiceError(opCreateNote, "invalid_style", fmt.Errorf("%w: unknown style %q", ErrInvalidInput, req.StyleID))
	}
	if len(req.Audio) == 0 {
		return Note{}, newServiceError(opCreateNote, "missing_audio", fmt.Errorf("%w: no audio provided", ErrInvalidInput))
	}
	if strings.TrimSpace(req.UserID) == "" {
		return Note{}, newServiceError(opCreateNote, "missing_user", ErrUnauthorized)
	}

	isPremium, err := s.premium.IsPremium(ctx, req.UserID)
	if err != nil {
		s.logError(opCreateNote, "premium_check_failed", err, zap.String("user_id", req.UserID))
		return Note{}, newServiceError(opCreateNote, "premium_check_failed", err)
	}

	// The quota check and the later insert are deliberately not linked in
	// one transaction; concurrent submissions near the boundary can exceed
	// the cap by the number of in-flight requests minus one.
	if !isPremium {
		count, err := s.repo.CountCompleted(ctx, req.UserID)
		if err != nil {
			s.logError(opCreateNote, "count_failed", err, zap.String("user_id", req.UserID))
			return Note{}, newServiceError(opCreateNote, "count_failed", fmt.Errorf("%w: %v", ErrPersistence, err))
		}
		if count >= FreeNoteLimit {
			return Note{}, newServiceError(opCreateNote, "limit_reached", ErrQuotaExceeded)
		}
	}

	mimeType := req.MIMEType
	if strings.TrimSpace(mimeType) == "" {
		mimeType = defaultAudioMIMEType
	}
	audioPath := storage.BuildObjectPath(req.UserID, req.Filename, s.clock())

	if err := s.blobs.Upload(ctx, audioPath, req.Audio, mimeType); err != nil {
		s.logError(opCreateNote, "upload_failed", err,
			zap.String("user_id", req.UserID),
			zap.String("path", audioPath))
		return Note{}, newServiceError(opCreateNote, "upload_failed", fmt.Errorf("%w: %v", ErrUpload, err))
	}

	note, pipelineErr := s.processUploadedAudio(ctx, req, style, audioPath, mimeType)
	if pipelineErr != nil {
		s.logError(opCreateNote, "pipeline_failed", pipelineErr,
			zap.String("user_id", req.UserID),
			zap.String("style_id", style.ID),
			zap.String("path", audioPath))
		s.insertFailedNote(ctx, req.UserID, style, audioPath, mimeType, pipelineErr)
		return Note{}, newServiceError(opCreateNote, "pipeline_failed", pipelineErr)
	}

	s.logger.Info("note created",
		zap.String("code", "notes.create.completed"),
		zap.String("user_id", req.UserID),
		zap.String("note_id", note.ID),
		zap.String("style_id", style.ID))
	return note, nil
}

func (s *Service) processUploadedAudio(ctx context.Context, req CreateRequest, style styles.WritingStyle, audioPath, mimeType string) (Note, error) {
	transcript, err := s.ai.Transcribe(ctx, req.UserID, req.Audio, mimeType)
	if err != nil {
		return Note{}, err
	}

	rewrite, err := s.ai.Rewrite(ctx, req.UserID, transcript, style)
	if err != nil {
		return Note{}, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Note{}, err
	}

	summary := rewrite.TranscriptSummary
	note := Note{
		ID:                id,
		UserID:            req.UserID,
		StyleID:           style.ID,
		StyleName:         style.Name,
		StyleDescription:  style.Description,
		Title:             rewrite.Title,
		Content:           rewrite.Content,
		Transcript:        transcript,
		TranscriptSummary: &summary,
		AudioPath:         audioPath,
		AudioMIMEType:     mimeType,
		Status:            StatusCompleted,
	}
	if err := s.repo.Insert(ctx, &note); err != nil {
		return Note{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return note, nil
}

// insertFailedNote records the compensating failed row. Its own failure is
// logged only: the pipeline reports the original error either way.
func (s *Service) insertFailedNote(ctx context.Context, userID string, style styles.WritingStyle, audioPath, mimeType string, cause error) {
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateNote, "failed_note_id", err, zap.String("user_id", userID))
		return
	}
	lastError := cause.Error()
	failed := Note{
		ID:               id,
		UserID:           userID,
		StyleID:          style.ID,
		StyleName:        style.Name,
		StyleDescription: style.Description,
		Title:            fmt.Sprintf("Failed Note (%s)", style.Name),
		Content:          "",
		Transcript:       "",
		AudioPath:        audioPath,
		AudioMIMEType:    mimeType,
		Status:           StatusFailed,
		LastError:        &lastError,
	}
	if err := s.repo.Insert(ctx, &failed); err != nil {
		s.logError(opCreateNote, "failed_note_insert", err,
			zap.String("user_id", userID),
			zap.String("path", audioPath))
	}
}

// ListPage is one page of a user's completed notes.
type ListPage struct {
	Notes    []Note
	Page     int
	PageSize int
	Total    int64
}

// List returns the user's completed notes, newest first.
func (s *Service) List(ctx context.Context, userID string, page, pageSize int) (ListPage, error) {
	rows, total, err := s.repo.List(ctx, userID, page, pageSize)
	if err != nil {
		s.logError(opListNotes, "query_failed", err, zap.String("user_id", userID))
		return ListPage{}, newServiceError(opListNotes, "query_failed", fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	if rows == nil {
		rows = []Note{}
	}
	return ListPage{Notes: rows, Page: page, PageSize: pageSize, Total: total}, nil
}

// UpdatePatch carries an owner-initiated edit. Nil fields are untouched.
type UpdatePatch struct {
	Title   *string
	Content *string
}

// Update edits title and/or content after re-checking ownership against
// the freshly fetched row. A foreign owner is unauthorized; a missing row
// is not found.
func (s *Service) Update(ctx context.Context, userID, noteID string, patch UpdatePatch) (Note, error) {
	if patch.Title == nil && patch.Content == nil {
		return Note{}, newServiceError(opUpdateNote, "empty_patch", fmt.Errorf("%w: title or content required", ErrInvalidInput))
	}

	note, err := s.fetchOwned(ctx, opUpdateNote, userID, noteID)
	if err != nil {
		return Note{}, err
	}

	values := map[string]interface{}{"updated_at": s.clock().UTC()}
	if patch.Title != nil {
		values["title"] = *patch.Title
	}
	if patch.Content != nil {
		values["content"] = *patch.Content
	}
	if err := s.repo.Update(ctx, note.ID, values); err != nil {
		s.logError(opUpdateNote, "update_failed", err,
			zap.String("user_id", userID),
			zap.String("note_id", noteID))
		return Note{}, newServiceError(opUpdateNote, "update_failed", fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	updated, err := s.repo.GetByID(ctx, note.ID)
	if err != nil {
		return Note{}, newServiceError(opUpdateNote, "reload_failed", err)
	}
	return updated, nil
}

// Delete removes the owner's note row, then best-effort removes the audio
// object. A blob-removal failure is logged and never surfaced: the row
// deletion already succeeded and the row is the record of truth.
func (s *Service) Delete(ctx context.Context, userID, noteID string) error {
	note, err := s.fetchOwned(ctx, opDeleteNote, userID, noteID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, note.ID); err != nil {
		s.logError(opDeleteNote, "delete_failed", err,
			zap.String("user_id", userID),
			zap.String("note_id", noteID))
		return newServiceError(opDeleteNote, "delete_failed", fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	if note.AudioPath != "" {
		if err := s.blobs.Remove(ctx, note.AudioPath); err != nil {
			s.logError(opDeleteNote, "blob_remove_failed", err,
				zap.String("user_id", userID),
				zap.String("note_id", noteID),
				zap.String("path", note.AudioPath))
		}
	}

	s.logger.Info("note deleted",
		zap.String("code", "notes.delete.success"),
		zap.String("user_id", userID),
		zap.String("note_id", noteID),
		zap.String("style_name", note.StyleName))
	return nil
}

func (s *Service) fetchOwned(ctx context.Context, operation, userID, noteID string) (Note, error) {
	note, err := s.repo.GetByID(ctx, noteID)
	if errors.Is(err, ErrNotFound) {
		return Note{}, newServiceError(operation, "not_found", err)
	}
	if err != nil {
		s.logError(operation, "fetch_failed", err,
			zap.String("user_id", userID),
			zap.String("note_id", noteID))
		return Note{}, newServiceError(operation, "fetch_failed", fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	if note.UserID != userID {
		return Note{}, newServiceError(operation, "foreign_owner", ErrUnauthorized)
	}
	return note, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("notes service error", attrs...)
}
