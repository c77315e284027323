package handler

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cddm-gh/audio-sphere-switcher/errors"
	audiodto "github.com/cddm-gh/audio-sphere-switcher/internal/adapter/dto/audio"
	"github.com/cddm-gh/audio-sphere-switcher/internal/usecase/pipeline"
)

// Summary exposes summary generation over HTTP. The event bus drives the
// same operation automatically; this endpoint exists for re-summarizing and
// for manual recovery.
type Summary struct {
	svc    *pipeline.Service
	logger *zap.Logger
}

// NewSummary creates a new summary handler
func NewSummary(svc *pipeline.Service, logger *zap.Logger) *Summary {
	return &Summary{svc: svc, logger: logger}
}

// Generate produces a summary for the given transcription and stores it on
// the item, replacing any previous summary
func (h *Summary) Generate(c echo.Context) error {
	var req audiodto.SummaryRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("Invalid audio item id"))
	}

	summary, err := h.svc.Summarize(c.Request().Context(), id, req.Transcription)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, audiodto.SummaryResponse{GeneratedSummary: summary})
}
