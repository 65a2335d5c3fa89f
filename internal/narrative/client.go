// Package narrative is the client for the external AI narrative/image
// service. Calls are fallible remote calls with their own timeout; failures
// surface as typed errors and never crash the engine.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable wraps any transport or service failure from the narrative
// service.
var ErrUnavailable = errors.New("narrative service unavailable")

// Client calls the AI narrative/image generation service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a narrative client with the given per-call timeout.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type narrateRequest struct {
	Prompt   string `json:"prompt"`
	Location string `json:"location,omitempty"`
	Phase    string `json:"phase,omitempty"`
}

type narrateResponse struct {
	Text string `json:"text"`
}

type imageRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
}

type imageResponse struct {
	URL string `json:"url"`
}

// Narrate requests a narrative passage for the given prompt and scene context.
func (c *Client) Narrate(ctx context.Context, prompt, location, phase string) (string, error) {
	var resp narrateResponse
	err := c.post(ctx, "/v1/narrate", narrateRequest{Prompt: prompt, Location: location, Phase: phase}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// GenerateImage requests a scene image, returning its URL.
func (c *Client) GenerateImage(ctx context.Context, prompt, style string) (string, error) {
	var resp imageResponse
	err := c.post(ctx, "/v1/images", imageRequest{Prompt: prompt, Style: style}, &resp)
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: failed to encode request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("narrative service call failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("narrative service returned error status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}

	return nil
}
