package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PipelineStatus is the derived processing state of an audio item.
// It is computed from column nullability, never stored, so it can only
// move forward as columns are filled in.
type PipelineStatus string

const (
	PipelineStatusCreated     PipelineStatus = "created"
	PipelineStatusDispatched  PipelineStatus = "dispatched"
	PipelineStatusTranscribed PipelineStatus = "transcribed"
	PipelineStatusSummarized  PipelineStatus = "summarized"
)

// AudioItem represents one uploaded or recorded clip and its pipeline state.
// Every processing stage reads and mutates this single row; it is the only
// coordination point between the otherwise stateless stages.
type AudioItem struct {
	ID                uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OwnerID           uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;index"`
	Filename          string         `json:"filename" gorm:"type:varchar(255);not null;index"`
	StorageKey        string         `json:"storage_key" gorm:"type:text;not null"`
	DurationSeconds   int            `json:"duration_seconds" gorm:"not null;default:0"`
	ByteSize          int64          `json:"byte_size" gorm:"not null;default:0"`
	ProviderRequestID *string        `json:"provider_request_id,omitempty" gorm:"type:varchar(255);index"`
	Transcription     *string        `json:"transcription,omitempty" gorm:"type:text"`
	Transcribed       bool           `json:"transcribed" gorm:"not null;default:false"`
	Summary           *string        `json:"summary,omitempty" gorm:"type:text"`
	ProviderMetadata  datatypes.JSON `json:"provider_metadata,omitempty" gorm:"type:jsonb;default:'{}'"`
	CreatedAt         time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (AudioItem) TableName() string {
	return "audio_items"
}

// NewAudioItem creates an audio item in its initial state
func NewAudioItem(ownerID uuid.UUID, filename, storageKey string, durationSeconds int, byteSize int64) *AudioItem {
	return &AudioItem{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		Filename:        filename,
		StorageKey:      storageKey,
		DurationSeconds: durationSeconds,
		ByteSize:        byteSize,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

// Status derives the pipeline state from the row's columns
func (a *AudioItem) Status() PipelineStatus {
	switch {
	case a.Summary != nil:
		return PipelineStatusSummarized
	case a.Transcribed:
		return PipelineStatusTranscribed
	case a.ProviderRequestID != nil:
		return PipelineStatusDispatched
	default:
		return PipelineStatusCreated
	}
}

// IsTerminal reports whether the item reached its final state
func (a *AudioItem) IsTerminal() bool {
	return a.Status() == PipelineStatusSummarized
}

// MarkDispatched attaches the provider correlation id after a successful
// dispatch. The id is the only key the callback may later use to locate
// this row.
func (a *AudioItem) MarkDispatched(requestID string) {
	a.ProviderRequestID = &requestID
	a.UpdatedAt = time.Now()
}

// MarkTranscribed commits the normalized transcription and flips the flag.
// The transition is one-directional; re-applying the same text is a no-op
// in effect.
func (a *AudioItem) MarkTranscribed(text string) {
	a.Transcription = &text
	a.Transcribed = true
	a.UpdatedAt = time.Now()
}

// MarkSummarized attaches the generated summary. Re-invocation overwrites
// with a fresh summary; it never clears the field.
func (a *AudioItem) MarkSummarized(summary string) {
	a.Summary = &summary
	a.UpdatedAt = time.Now()
}
