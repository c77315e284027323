package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cddm-gh/audio-sphere-switcher/internal/infrastructure/http/middleware"
	"github.com/cddm-gh/audio-sphere-switcher/pkg/config"
	"github.com/cddm-gh/audio-sphere-switcher/pkg/jwt"
)

// Router holds all handlers
type Router struct {
	cfg            *config.Config
	jwtManager     *jwt.Manager
	audioHandler   *Audio
	transcription  *Transcription
	webhookHandler *TranscriptionWebhook
	summaryHandler *Summary
}

// NewRouter creates a new router with all handlers
func NewRouter(
	cfg *config.Config,
	jwtManager *jwt.Manager,
	audioHandler *Audio,
	transcription *Transcription,
	webhookHandler *TranscriptionWebhook,
	summaryHandler *Summary,
) *Router {
	return &Router{
		cfg:            cfg,
		jwtManager:     jwtManager,
		audioHandler:   audioHandler,
		transcription:  transcription,
		webhookHandler: webhookHandler,
		summaryHandler: summaryHandler,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	v1 := e.Group("/v1")

	// Provider callback; authenticated by shared secret in the handler,
	// not by user auth.
	v1.POST("/webhooks/transcription", rt.webhookHandler.Handle)

	auth := middleware.EchoAuth(rt.jwtManager)

	audioGroup := v1.Group("/audio", auth)
	audioGroup.POST("", rt.audioHandler.Upload)
	audioGroup.GET("", rt.audioHandler.List)
	audioGroup.GET("/:id", rt.audioHandler.Get)
	audioGroup.GET("/:id/url", rt.audioHandler.PlaybackURL)

	v1.POST("/transcriptions/dispatch", rt.transcription.Dispatch, auth)
	v1.POST("/summaries", rt.summaryHandler.Generate, auth)
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": rt.cfg.Server.Environment,
	})
}
