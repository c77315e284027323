package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cddm-gh/audio-sphere-switcher/errors"
	audiodto "github.com/cddm-gh/audio-sphere-switcher/internal/adapter/dto/audio"
	"github.com/cddm-gh/audio-sphere-switcher/internal/infrastructure/http/middleware"
	"github.com/cddm-gh/audio-sphere-switcher/internal/usecase/pipeline"
)

// Audio handles the caller-facing audio endpoints: upload, listing and
// playback
type Audio struct {
	svc         *pipeline.Service
	dispatchURL string
	client      *http.Client
	logger      *zap.Logger
}

// NewAudio creates a new audio handler. dispatchURL is where the upload
// hand-off request is fired after a successful upload.
func NewAudio(svc *pipeline.Service, dispatchURL string, logger *zap.Logger) *Audio {
	return &Audio{
		svc:         svc,
		dispatchURL: dispatchURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

// Upload stores a recorded clip and kicks off its transcription. The blob
// goes to object storage under an owner-prefixed key, the pipeline row is
// created, and the dispatch hand-off is fired without waiting for it; a
// failed hand-off leaves the row in its created state for a manual retry.
func (h *Audio) Upload(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return HandleError(h.logger, c, errors.ErrUnauthenticated())
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("Missing file parameter"))
	}

	duration := 0
	if v := c.FormValue("duration_seconds"); v != "" {
		if duration, err = strconv.Atoi(v); err != nil || duration < 0 {
			return HandleError(h.logger, c, errors.ErrInvalidArgument("Invalid duration_seconds"))
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInternal(err))
	}
	defer src.Close()

	ext := filepath.Ext(fileHeader.Filename)
	storageKey := fmt.Sprintf("%s/audio-%d%s", ownerID, time.Now().UnixNano(), ext)
	contentType := fileHeader.Header.Get("Content-Type")

	item, err := h.svc.Upload(c.Request().Context(), ownerID, fileHeader.Filename,
		storageKey, contentType, src, fileHeader.Size, duration)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	// The hand-off reuses the caller's own credential so the dispatch
	// endpoint sees the same owner.
	go h.fireDispatch(item.Filename, item.StorageKey, middleware.AccessToken(c))

	return HandleSuccess(h.logger, c, audiodto.UploadResponse{
		ID:          item.ID.String(),
		Filename:    item.Filename,
		StoragePath: item.StorageKey,
		Status:      string(item.Status()),
	})
}

// fireDispatch posts the upload hand-off to the dispatch endpoint. Failures
// are logged, not surfaced; the upload already succeeded.
func (h *Audio) fireDispatch(filename, storagePath, accessToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	body, err := json.Marshal(audiodto.DispatchRequest{
		Filename:    filename,
		StoragePath: storagePath,
	})
	if err != nil {
		h.logger.Error("dispatch hand-off payload", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.dispatchURL, bytes.NewReader(body))
	if err != nil {
		h.logger.Error("dispatch hand-off request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("dispatch hand-off failed",
			zap.String("filename", filename),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		h.logger.Error("dispatch hand-off rejected",
			zap.String("filename", filename),
			zap.Int("status", resp.StatusCode))
	}
}

// List returns the caller's audio items, newest first
func (h *Audio) List(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return HandleError(h.logger, c, errors.ErrUnauthenticated())
	}

	var req audiodto.ListRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	req.Normalize()

	items, total, err := h.svc.List(c.Request().Context(), ownerID, req.PageSize, (req.Page-1)*req.PageSize)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, audiodto.ToListResponse(items, total, req.Page, req.PageSize))
}

// Get returns a single audio item owned by the caller
func (h *Audio) Get(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return HandleError(h.logger, c, errors.ErrUnauthenticated())
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("Invalid audio item id"))
	}

	item, err := h.svc.Get(c.Request().Context(), ownerID, id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, audiodto.ToItemResponse(item))
}

// PlaybackURL returns a time-limited streaming URL for the stored audio
func (h *Audio) PlaybackURL(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return HandleError(h.logger, c, errors.ErrUnauthenticated())
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("Invalid audio item id"))
	}

	url, err := h.svc.PlaybackURL(c.Request().Context(), ownerID, id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, audiodto.PlaybackURLResponse{URL: url})
}
