package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Synthesize converts text to speech via POST /synthesize and returns the
// raw audio payload (audio/mpeg). A non-success status or transport failure
// surfaces as *APIError or a wrapped transport error; either way the
// session stays usable and only the current turn aborts.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	start := time.Now()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("text", text); err != nil {
		return nil, fmt.Errorf("backend: write form: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("backend: close form: %w", err)
	}
	body := buf.Bytes()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "audio/mpeg")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.do(ctx, req, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend: read audio: %w", err)
	}

	c.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return audio, nil
}

// SaveAudio persists a synthesized audio blob to dir and returns the file
// path as a stable audio ref. Synthesis never drives playback directly;
// callers play the saved ref.
func SaveAudio(audio []byte, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("backend: create audio dir: %w", err)
	}

	path := filepath.Join(dir, "reply-"+uuid.NewString()+".mp3")
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("backend: save audio: %w", err)
	}
	return path, nil
}
