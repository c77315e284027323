package handler

import (
	"io"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cddm-gh/audio-sphere-switcher/errors"
	"github.com/cddm-gh/audio-sphere-switcher/internal/usecase/pipeline"
	"github.com/cddm-gh/audio-sphere-switcher/pkg/ai"
)

// TranscriptionWebhook receives completed transcriptions from the speech
// provider. The endpoint is not behind user auth; the provider proves
// itself with the shared secret it echoes in the token header.
type TranscriptionWebhook struct {
	svc    *pipeline.Service
	secret string
	logger *zap.Logger
}

// NewTranscriptionWebhook creates a new webhook handler
func NewTranscriptionWebhook(svc *pipeline.Service, secret string, logger *zap.Logger) *TranscriptionWebhook {
	return &TranscriptionWebhook{svc: svc, secret: secret, logger: logger}
}

// Handle verifies the provider token and ingests the callback payload. A
// bad token is rejected before the body is even read, so a forged request
// causes no pipeline activity at all.
func (h *TranscriptionWebhook) Handle(c echo.Context) error {
	token := c.Request().Header.Get(ai.CallbackTokenHeader)
	if !ai.VerifyCallbackToken(h.secret, token) {
		h.logger.Warn("webhook token rejected",
			zap.String("request_id", getRequestID(c)),
			zap.String("remote", c.RealIP()))
		return HandleError(h.logger, c, errors.ErrInvalidWebhookToken())
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}

	if err := h.svc.HandleCallback(c.Request().Context(), body); err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, map[string]interface{}{"status": "ok"})
}
