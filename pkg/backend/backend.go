// Package backend provides the HTTP client for the tutor backend service.
//
// The backend exposes four operations consumed by the turn-exchange
// pipeline: speech synthesis, agent reply text, per-turn message
// persistence and per-owner conversation reset. All failures surface as
// typed errors; a failed call aborts the current turn but never the
// session.
//
// Example usage:
//
//	client, _ := backend.New(
//	    backend.WithBaseURL("https://tutor.example.com"),
//	)
//
//	audio, _ := client.Synthesize(ctx, "Hello world")
//	ref, _ := backend.SaveAudio(audio, audioDir)
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client talks to the tutor backend.
type Client struct {
	config *Config
	client *http.Client
	logger *slog.Logger
}

// New creates a backend client.
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		client: cfg.HTTPClient,
		logger: cfg.Logger.With("component", "backend"),
	}, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// do performs req with retry on 429/5xx and transport errors.
// body is the full request body so it can be replayed on retry; pass nil
// for bodyless requests.
func (c *Client) do(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
			if body != nil {
				req.Body = io.NopCloser(bytes.NewReader(body))
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("backend: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = parseError(resp)
			resp.Body.Close()
			c.logger.Warn("retrying request",
				"path", req.URL.Path,
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}
