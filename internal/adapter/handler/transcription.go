package handler

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cddm-gh/audio-sphere-switcher/errors"
	audiodto "github.com/cddm-gh/audio-sphere-switcher/internal/adapter/dto/audio"
	"github.com/cddm-gh/audio-sphere-switcher/internal/infrastructure/http/middleware"
	"github.com/cddm-gh/audio-sphere-switcher/internal/usecase/pipeline"
)

// Transcription handles the dispatch endpoint that hands a stored blob to
// the speech provider
type Transcription struct {
	svc    *pipeline.Service
	logger *zap.Logger
}

// NewTranscription creates a new transcription handler
func NewTranscription(svc *pipeline.Service, logger *zap.Logger) *Transcription {
	return &Transcription{svc: svc, logger: logger}
}

// Dispatch submits the caller's stored audio for transcription and records
// the provider's correlation id on the matching row
func (h *Transcription) Dispatch(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return HandleError(h.logger, c, errors.ErrUnauthenticated())
	}

	var req audiodto.DispatchRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	item, err := h.svc.Dispatch(c.Request().Context(), ownerID, req.Filename, req.StoragePath)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	requestID := ""
	if item.ProviderRequestID != nil {
		requestID = *item.ProviderRequestID
	}

	return HandleSuccess(h.logger, c, audiodto.DispatchResponse{
		ID:        item.ID.String(),
		RequestID: requestID,
		Status:    string(item.Status()),
	})
}
