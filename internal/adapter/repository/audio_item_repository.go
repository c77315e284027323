package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cddm-gh/audio-sphere-switcher/internal/domain/entities"
)

// OwnerScopedRepository handles audio item data operations on behalf of a
// caller. Every query is constrained to the owner passed in; it never
// exposes another owner's rows.
type OwnerScopedRepository struct {
	db *gorm.DB
}

// NewOwnerScopedRepository creates a new owner-scoped repository
func NewOwnerScopedRepository(db *gorm.DB) *OwnerScopedRepository {
	return &OwnerScopedRepository{db: db}
}

// Create creates a new audio item
func (r *OwnerScopedRepository) Create(ctx context.Context, item *entities.AudioItem) error {
	if item == nil {
		return errors.New("audio item cannot be nil")
	}
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByID retrieves an audio item by ID, scoped to the owner
func (r *OwnerScopedRepository) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*entities.AudioItem, error) {
	var item entities.AudioItem
	if err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// FindByFilename retrieves an audio item by its original filename, scoped to
// the owner
func (r *OwnerScopedRepository) FindByFilename(ctx context.Context, ownerID uuid.UUID, filename string) (*entities.AudioItem, error) {
	var item entities.AudioItem
	if err := r.db.WithContext(ctx).
		Where("filename = ? AND owner_id = ?", filename, ownerID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// AttachRequestID writes the provider correlation id onto the row matched by
// filename and owner, returning the number of rows matched
func (r *OwnerScopedRepository) AttachRequestID(ctx context.Context, ownerID uuid.UUID, filename, requestID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.AudioItem{}).
		Where("filename = ? AND owner_id = ?", filename, ownerID).
		Updates(map[string]interface{}{
			"provider_request_id": requestID,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// List retrieves the owner's audio items ordered by creation time descending,
// paginated by offset window, together with the total count
func (r *OwnerScopedRepository) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]entities.AudioItem, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&entities.AudioItem{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []entities.AudioItem
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SystemRepository handles audio item mutations that cannot act as any
// particular caller: the provider webhook and the summary worker. It
// bypasses owner scoping and must never be handed to request handlers that
// act on a caller's behalf.
type SystemRepository struct {
	db *gorm.DB
}

// NewSystemRepository creates a new system-scoped repository
func NewSystemRepository(db *gorm.DB) *SystemRepository {
	return &SystemRepository{db: db}
}

// FindByID retrieves an audio item by ID regardless of owner
func (r *SystemRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.AudioItem, error) {
	var item entities.AudioItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// FindByRequestID retrieves an audio item by provider correlation id
func (r *SystemRepository) FindByRequestID(ctx context.Context, requestID string) (*entities.AudioItem, error) {
	var item entities.AudioItem
	if err := r.db.WithContext(ctx).
		Where("provider_request_id = ?", requestID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// CommitTranscription atomically writes the transcription, metadata and flag
// on the row matched by correlation id. A duplicate delivery matches the
// already-transcribed row and rewrites the same values, so retries from the
// provider are harmless.
func (r *SystemRepository) CommitTranscription(ctx context.Context, requestID, text string, providerMetadata []byte) (int64, error) {
	updates := map[string]interface{}{
		"transcription": text,
		"transcribed":   true,
		"updated_at":    time.Now(),
	}
	if len(providerMetadata) > 0 {
		updates["provider_metadata"] = providerMetadata
	}

	result := r.db.WithContext(ctx).
		Model(&entities.AudioItem{}).
		Where("provider_request_id = ?", requestID).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// UpdateSummary writes (or overwrites) the summary on the row with the given
// primary key. The match requires transcribed = true; a summary can never
// land on a row that has no committed transcription.
func (r *SystemRepository) UpdateSummary(ctx context.Context, id uuid.UUID, summary string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.AudioItem{}).
		Where("id = ? AND transcribed = ?", id, true).
		Updates(map[string]interface{}{
			"summary":    summary,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListStuckDispatched returns rows dispatched longer than maxAge ago that
// never received a callback
func (r *SystemRepository) ListStuckDispatched(ctx context.Context, maxAge time.Duration) ([]entities.AudioItem, error) {
	cutoff := time.Now().Add(-maxAge)
	var items []entities.AudioItem
	if err := r.db.WithContext(ctx).
		Where("provider_request_id IS NOT NULL AND transcribed = false AND updated_at < ?", cutoff).
		Order("updated_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
