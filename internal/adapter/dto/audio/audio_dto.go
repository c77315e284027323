package audio

import (
	"time"

	"github.com/cddm-gh/audio-sphere-switcher/internal/adapter/dto/common"
	"github.com/cddm-gh/audio-sphere-switcher/internal/domain/entities"
)

// UploadResponse is returned after an audio blob is stored and its pipeline
// row created
type UploadResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	StoragePath string `json:"storage_path"`
	Status      string `json:"status"`
}

// DispatchRequest asks the pipeline to submit a stored blob for
// transcription
type DispatchRequest struct {
	Filename    string `json:"filename" validate:"required"`
	StoragePath string `json:"storage_path"`
}

// DispatchResponse carries the provider correlation id back to the caller
type DispatchResponse struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// SummaryRequest asks for a summary of the given transcription text. When
// Transcription is empty the stored transcription of the item is used.
type SummaryRequest struct {
	ID            string `json:"id" validate:"required,uuid"`
	Transcription string `json:"transcription"`
}

// SummaryResponse carries the generated summary
type SummaryResponse struct {
	GeneratedSummary string `json:"generatedSummary"`
}

// ListRequest holds pagination parameters for the audio listing
type ListRequest struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// Normalize applies listing defaults
func (r *ListRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 || r.PageSize > 100 {
		r.PageSize = 20
	}
}

// ItemResponse is the caller-facing view of an audio item
type ItemResponse struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	StoragePath     string    `json:"storage_path"`
	DurationSeconds int       `json:"duration_seconds"`
	ByteSize        int64     `json:"byte_size"`
	Status          string    `json:"status"`
	Transcription   *string   `json:"transcription,omitempty"`
	Summary         *string   `json:"summary,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ListResponse is a paginated audio listing
type ListResponse struct {
	Data       []ItemResponse            `json:"data"`
	Pagination common.PaginationResponse `json:"pagination"`
}

// PlaybackURLResponse carries a time-limited streaming URL
type PlaybackURLResponse struct {
	URL string `json:"url"`
}

// ToItemResponse maps an entity to its caller-facing view
func ToItemResponse(item *entities.AudioItem) ItemResponse {
	return ItemResponse{
		ID:              item.ID.String(),
		Filename:        item.Filename,
		StoragePath:     item.StorageKey,
		DurationSeconds: item.DurationSeconds,
		ByteSize:        item.ByteSize,
		Status:          string(item.Status()),
		Transcription:   item.Transcription,
		Summary:         item.Summary,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}

// ToListResponse maps a page of entities plus the total count
func ToListResponse(items []entities.AudioItem, total int64, page, pageSize int) ListResponse {
	data := make([]ItemResponse, 0, len(items))
	for i := range items {
		data = append(data, ToItemResponse(&items[i]))
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPages++
	}

	return ListResponse{
		Data: data,
		Pagination: common.PaginationResponse{
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
			TotalItems: total,
		},
	}
}
