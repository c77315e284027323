package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/cddm-gh/audio-sphere-switcher/errors"
	"github.com/cddm-gh/audio-sphere-switcher/internal/domain/entities"
	"github.com/cddm-gh/audio-sphere-switcher/internal/domain/repositories"
	"github.com/cddm-gh/audio-sphere-switcher/internal/infrastructure/events"
)

// ObjectStorage is the blob store the pipeline reads and writes audio through
type ObjectStorage interface {
	Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)
	PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// SpeechClient submits audio for asynchronous transcription and returns the
// provider's correlation id
type SpeechClient interface {
	SubmitAudio(ctx context.Context, audio io.Reader, contentType, callbackURL string) (string, error)
}

// SummaryClient turns a finished transcription into a summary
type SummaryClient interface {
	GenerateSummary(ctx context.Context, transcription string) (string, error)
}

// EventPublisher emits transcribed events for the summary stage
type EventPublisher interface {
	Publish(ctx context.Context, event events.TranscribedEvent) error
}

// Service orchestrates the audio pipeline: upload, dispatch to the speech
// provider, callback ingestion and summary generation. Caller-facing
// operations take an owner id and go through the owner-scoped store; the
// webhook and summary paths act as the system and use the system store.
type Service struct {
	ownerStore  repositories.OwnerScopedStore
	systemStore repositories.SystemStore
	storage     ObjectStorage
	speech      SpeechClient
	summarizer  SummaryClient
	publisher   EventPublisher
	callbackURL string
	presignTTL  time.Duration
	logger      *zap.Logger
}

// NewService creates the pipeline service
func NewService(
	ownerStore repositories.OwnerScopedStore,
	systemStore repositories.SystemStore,
	storage ObjectStorage,
	speech SpeechClient,
	summarizer SummaryClient,
	publisher EventPublisher,
	callbackURL string,
	logger *zap.Logger,
) *Service {
	return &Service{
		ownerStore:  ownerStore,
		systemStore: systemStore,
		storage:     storage,
		speech:      speech,
		summarizer:  summarizer,
		publisher:   publisher,
		callbackURL: callbackURL,
		presignTTL:  time.Hour,
		logger:      logger,
	}
}

// Upload stores the audio blob and creates the pipeline row for it. The blob
// is written first so a row never points at a key that does not exist; if
// the row insert fails the caller gets the error and the blob stays behind
// as unreferenced garbage, which is harmless.
func (s *Service) Upload(ctx context.Context, ownerID uuid.UUID, filename, storageKey, contentType string, audio io.Reader, size int64, durationSeconds int) (*entities.AudioItem, error) {
	if contentType == "" {
		contentType = contentTypeFor(filename)
	}

	if err := s.storage.Upload(ctx, storageKey, audio, size, contentType); err != nil {
		return nil, apperrors.ErrStorageFailed("upload", err)
	}

	item := entities.NewAudioItem(ownerID, filename, storageKey, durationSeconds, size)
	if err := s.ownerStore.Create(ctx, item); err != nil {
		return nil, apperrors.ErrDBQueryFailed("create audio item", err)
	}

	s.logger.Info("audio uploaded",
		zap.String("item_id", item.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("storage_key", storageKey),
		zap.Int64("bytes", size))

	return item, nil
}

// Dispatch reads the stored blob back and submits it to the speech provider,
// then attaches the returned correlation id to the row matched by filename.
// Exactly one row must take the id; zero or several means the later callback
// could not be routed, so the whole dispatch fails loudly.
func (s *Service) Dispatch(ctx context.Context, ownerID uuid.UUID, filename, storagePath string) (*entities.AudioItem, error) {
	item, err := s.ownerStore.FindByFilename(ctx, ownerID, filename)
	if err != nil {
		return nil, apperrors.ErrDBQueryFailed("find audio item", err)
	}
	if item == nil {
		return nil, apperrors.ErrAudioItemNotFound(filename)
	}
	if storagePath == "" {
		storagePath = item.StorageKey
	}

	blob, err := s.storage.Download(ctx, storagePath)
	if err != nil {
		return nil, apperrors.ErrStorageFailed("download", err)
	}
	audio, err := io.ReadAll(blob)
	blob.Close()
	if err != nil {
		return nil, apperrors.ErrStorageFailed("read", err)
	}

	// The blob is buffered so every retry submits the complete audio; a
	// shared reader would arrive drained on the second attempt.
	var requestID string
	operation := func() error {
		id, submitErr := s.speech.SubmitAudio(ctx, bytes.NewReader(audio), contentTypeFor(filename), s.callbackURL)
		if submitErr != nil {
			return submitErr
		}
		requestID = id
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, apperrors.ErrDispatchFailed(err)
	}

	matched, err := s.ownerStore.AttachRequestID(ctx, ownerID, filename, requestID)
	if err != nil {
		return nil, apperrors.ErrDBQueryFailed("attach request id", err)
	}
	if matched != 1 {
		s.logger.Error("dispatch matched unexpected row count",
			zap.String("filename", filename),
			zap.String("request_id", requestID),
			zap.Int64("matched", matched))
		return nil, apperrors.ErrAmbiguousDispatch(filename, matched)
	}

	item.MarkDispatched(requestID)

	s.logger.Info("audio dispatched",
		zap.String("item_id", item.ID.String()),
		zap.String("request_id", requestID))

	return item, nil
}

// HandleCallback ingests a completed transcription delivered by the speech
// provider. The raw payload is normalized to speaker-labeled text and
// committed against the row holding the echoed correlation id. A callback
// whose id matches no row fails loudly instead of being swallowed.
//
// Commit and publish are idempotent per request id, so a provider retry of
// an already-processed callback rewrites the same text and re-emits the
// same event.
func (s *Service) HandleCallback(ctx context.Context, body []byte) error {
	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return apperrors.ErrInvalidPayload()
	}
	if payload.Metadata.RequestID == "" {
		return apperrors.ErrInvalidPayload()
	}

	transcription := NormalizeTranscription(payload.Results)

	metadata, err := json.Marshal(payload.Metadata)
	if err != nil {
		metadata = nil
	}

	matched, err := s.systemStore.CommitTranscription(ctx, payload.Metadata.RequestID, transcription, metadata)
	if err != nil {
		return apperrors.ErrDBQueryFailed("commit transcription", err)
	}
	if matched == 0 {
		s.logger.Error("callback for unknown request id",
			zap.String("request_id", payload.Metadata.RequestID))
		return apperrors.ErrOrphanCallback(payload.Metadata.RequestID)
	}

	item, err := s.systemStore.FindByRequestID(ctx, payload.Metadata.RequestID)
	if err != nil {
		return apperrors.ErrDBQueryFailed("find by request id", err)
	}
	if item == nil {
		return apperrors.ErrOrphanCallback(payload.Metadata.RequestID)
	}

	// Failing here makes the provider redeliver, which re-runs the
	// idempotent commit above and retries the publish.
	if err := s.publisher.Publish(ctx, events.TranscribedEvent{
		ItemID:        item.ID,
		Transcription: transcription,
	}); err != nil {
		return apperrors.ErrEventPublishFailed(err)
	}

	s.logger.Info("transcription committed",
		zap.String("item_id", item.ID.String()),
		zap.String("request_id", payload.Metadata.RequestID),
		zap.Int("transcription_len", len(transcription)))

	return nil
}

// Summarize generates a summary for the given transcription text and stores
// it on the item. When transcription is empty the stored transcription is
// used instead, so a re-summarize request does not need to resend the text.
// An existing summary is overwritten. A summary is only ever stored on an
// item whose transcription has been committed.
func (s *Service) Summarize(ctx context.Context, id uuid.UUID, transcription string) (string, error) {
	if transcription == "" {
		item, err := s.systemStore.FindByID(ctx, id)
		if err != nil {
			return "", apperrors.ErrDBQueryFailed("find audio item", err)
		}
		if item == nil {
			return "", apperrors.ErrAudioItemNotFound(id.String())
		}
		if !item.Transcribed {
			return "", apperrors.ErrNotTranscribed(id.String())
		}
		if item.Transcription != nil {
			transcription = *item.Transcription
		}
	}

	summary, err := s.summarizer.GenerateSummary(ctx, transcription)
	if err != nil {
		return "", apperrors.ErrSummaryFailed(err)
	}

	// The update matches only transcribed rows; zero rows means the item is
	// missing or its transcription never landed.
	matched, err := s.systemStore.UpdateSummary(ctx, id, summary)
	if err != nil {
		return "", apperrors.ErrDBQueryFailed("update summary", err)
	}
	if matched == 0 {
		item, findErr := s.systemStore.FindByID(ctx, id)
		if findErr != nil {
			return "", apperrors.ErrDBQueryFailed("find audio item", findErr)
		}
		if item == nil {
			return "", apperrors.ErrAudioItemNotFound(id.String())
		}
		return "", apperrors.ErrNotTranscribed(id.String())
	}

	s.logger.Info("summary stored",
		zap.String("item_id", id.String()),
		zap.Int("summary_len", len(summary)))

	return summary, nil
}

// HandleTranscribedEvent adapts Summarize to the event bus handler shape
func (s *Service) HandleTranscribedEvent(ctx context.Context, event events.TranscribedEvent) error {
	_, err := s.Summarize(ctx, event.ItemID, event.Transcription)
	return err
}

// List returns the owner's audio items, newest first
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]entities.AudioItem, int64, error) {
	items, total, err := s.ownerStore.List(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.ErrDBQueryFailed("list audio items", err)
	}
	return items, total, nil
}

// Get returns a single audio item owned by the caller
func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*entities.AudioItem, error) {
	item, err := s.ownerStore.FindByID(ctx, ownerID, id)
	if err != nil {
		return nil, apperrors.ErrDBQueryFailed("find audio item", err)
	}
	if item == nil {
		return nil, apperrors.ErrAudioItemNotFound(id.String())
	}
	return item, nil
}

// PlaybackURL returns a time-limited URL for the caller to stream their
// stored audio
func (s *Service) PlaybackURL(ctx context.Context, ownerID, id uuid.UUID) (string, error) {
	item, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return "", err
	}

	url, err := s.storage.PresignedURL(ctx, item.StorageKey, s.presignTTL)
	if err != nil {
		return "", apperrors.ErrStorageFailed("presign", err)
	}
	return url, nil
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
