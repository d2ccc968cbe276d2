// Package crm is the gateway to the HighLevel-style CRM API. It fetches
// call messages and recordings, enumerates conversations and contacts,
// and posts summary notes back to contacts. All calls are made with
// per-tenant credentials; the client itself holds no tenant state.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/parleyhq/parley/internal/config"
)

// Credentials carries the per-tenant CRM access token and location id.
type Credentials struct {
	AccessToken string
	LocationID  string
}

// Client calls the CRM REST API.
type Client struct {
	baseURL          string
	apiVersion       string
	maxRecordingSize int64
	http             *http.Client
	logger           *slog.Logger
}

// New creates a CRM client from configuration.
func New(cfg *config.CRMConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:          cfg.BaseURL,
		apiVersion:       cfg.APIVersion,
		maxRecordingSize: cfg.MaxRecordingSizeBytes(),
		http:             &http.Client{Timeout: cfg.TimeoutDuration()},
		logger:           logger.With("system", "crm"),
	}
}

// FetchMessage returns the normalized message record for a message id.
// The API wraps the payload either bare or under a "message" envelope;
// both shapes are handled.
func (c *Client) FetchMessage(ctx context.Context, messageID string, creds Credentials) (*Message, error) {
	url := fmt.Sprintf("%s/conversations/messages/%s", c.baseURL, messageID)

	body, err := c.get(ctx, url, creds)
	if err != nil {
		return nil, fmt.Errorf("fetch message %s: %w", messageID, err)
	}

	msg, err := decodeMessage(body)
	if err != nil {
		return nil, fmt.Errorf("decode message %s: %w", messageID, err)
	}

	return msg, nil
}

// DownloadRecording fetches the raw recording audio through the
// per-location recording endpoint. This is the fallback path for
// configurations that expose no attachment URL.
func (c *Client) DownloadRecording(ctx context.Context, messageID string, creds Credentials) ([]byte, error) {
	url := fmt.Sprintf(
		"%s/conversations/messages/%s/locations/%s/recording",
		c.baseURL, messageID, creds.LocationID,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, creds)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download recording %s: %w", messageID, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp); err != nil {
		return nil, fmt.Errorf("download recording %s: %w", messageID, err)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxRecordingSize+1))
	if err != nil {
		return nil, fmt.Errorf("read recording %s: %w", messageID, err)
	}
	if int64(len(data)) > c.maxRecordingSize {
		return nil, fmt.Errorf("recording %s exceeds %d bytes", messageID, c.maxRecordingSize)
	}

	c.logger.Info("recording downloaded", "message", messageID, "bytes", len(data))
	return data, nil
}

// PostNote creates a note on a contact. Best-effort side channel:
// callers log failures but never fail their pipeline on them.
func (c *Client) PostNote(ctx context.Context, contactID, noteBody string, creds Credentials) error {
	url := fmt.Sprintf("%s/contacts/%s/notes", c.baseURL, contactID)

	payload, err := json.Marshal(map[string]string{"body": noteBody})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.setHeaders(req, creds)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post note for %s: %w", contactID, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp); err != nil {
		return fmt.Errorf("post note for %s: %w", contactID, err)
	}

	c.logger.Info("note posted", "contact", contactID)
	return nil
}

func (c *Client) get(ctx context.Context, url string, creds Credentials) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, creds)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := mapStatus(resp); err != nil {
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) setHeaders(req *http.Request, creds Credentials) {
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Version", c.apiVersion)
	req.Header.Set("Content-Type", "application/json")
}
