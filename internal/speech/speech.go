// Package speech is the client for the asynchronous speech-to-text
// provider. Audio is submitted with two-speaker diarization and a
// completion callback; results are fetched by job id and normalized
// into the transcript schema.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/internal/config"
)

// CallbackPath is the route the provider posts completion signals to,
// relative to the configured callback base URL.
const CallbackPath = "/hooks/transcription"

// Client calls the speech-to-text REST API.
type Client struct {
	baseURL     string
	apiKey      string
	callbackURL string
	http        *http.Client
	logger      *slog.Logger
}

// New creates a speech client from configuration.
func New(cfg *config.SpeechConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		callbackURL: strings.TrimSuffix(cfg.CallbackBaseURL, "/") + CallbackPath,
		http:        &http.Client{Timeout: cfg.TimeoutDuration()},
		logger:      logger.With("system", "speech"),
	}
}

// Upload streams raw audio bytes to the provider and returns the
// provider-hosted audio URL. Used for the binary fallback path when no
// attachment URL exists.
func (c *Client) Upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.baseURL+"/v2/upload",
		bytes.NewReader(audio),
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", upstreamError("upload audio", resp)
	}

	var payload struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if payload.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}

	c.logger.Info("audio uploaded", "bytes", len(audio))
	return payload.UploadURL, nil
}

// Submit queues a transcription job for the audio URL with two-speaker
// diarization and registers the completion callback. Returns the
// provider job id.
func (c *Client) Submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"audio_url":         audioURL,
		"webhook_url":       c.callbackURL,
		"speaker_labels":    true,
		"speakers_expected": 2,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.baseURL+"/v2/transcript",
		bytes.NewReader(body),
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit transcription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", upstreamError("submit transcription", resp)
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if payload.ID == "" {
		return "", fmt.Errorf("submit response missing job id")
	}

	c.logger.Info("transcription submitted", "job", payload.ID, "callback", c.callbackURL)
	return payload.ID, nil
}

// Fetch returns the provider's full transcript for a job id. The
// completion callback carries only id and status, so completion
// handling re-fetches the content through this call.
func (c *Client) Fetch(ctx context.Context, jobID string) (*Job, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		c.baseURL+"/v2/transcript/"+jobID,
		nil,
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript %s: %w", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, upstreamError("fetch transcript "+jobID, resp)
	}

	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", jobID, err)
	}

	return &job, nil
}

func upstreamError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(body))
}
