package ai

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cddm-gh/audio-sphere-switcher/pkg/config"
)

// DeepgramClient is a minimal Deepgram client for callback-mode transcription
type DeepgramClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewDeepgramClient creates a Deepgram client using the provided config.
// If cfg is nil, falls back to environment variables.
func NewDeepgramClient(cfg *config.DeepgramConfig) *DeepgramClient {
	var apiKey string
	if cfg != nil {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}

	var base string
	if cfg != nil && cfg.APIURL != "" {
		base = cfg.APIURL
	} else {
		base = os.Getenv("DEEPGRAM_API_URL")
		if base == "" {
			base = "https://api.deepgram.com"
		}
	}

	return &DeepgramClient{
		apiKey:  apiKey,
		baseURL: base,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// SubmitResponse is the minimal response for an async submission.
// When a callback URL is supplied the provider only acknowledges acceptance
// and returns the request id used to correlate the later webhook.
type SubmitResponse struct {
	RequestID string `json:"request_id"`
}

// SubmitAudio streams raw audio to the provider in callback mode and returns
// the correlation request id. The provider acknowledging this request means
// "dispatched", not "done"; completion arrives on the callback URL.
func (c *DeepgramClient) SubmitAudio(ctx context.Context, audio io.Reader, contentType, callbackURL string) (string, error) {
	if callbackURL == "" {
		return "", fmt.Errorf("callback URL is required for async transcription")
	}

	q := url.Values{}
	q.Set("callback", callbackURL)
	q.Set("callback_method", "post")
	q.Set("diarize", "true")
	q.Set("paragraphs", "true")
	q.Set("punctuate", "true")
	q.Set("detect_language", "true")

	endpoint := c.baseURL + "/v1/listen?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, audio)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("deepgram returned status %d", resp.StatusCode)
	}

	var sr SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", err
	}
	if sr.RequestID == "" {
		return "", fmt.Errorf("deepgram response missing request_id")
	}
	return sr.RequestID, nil
}

// CallbackTokenHeader is the header the provider echoes the shared secret in
const CallbackTokenHeader = "dg-token"

// VerifyCallbackToken compares the callback shared-secret header value
// against the configured secret in constant time
func VerifyCallbackToken(secret, token string) bool {
	if secret == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(token)) == 1
}
