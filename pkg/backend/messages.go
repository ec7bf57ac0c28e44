package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/guffawlabs/go-tutor/pkg/turn"
)

// UploadTurn persists one turn to the backend via POST /messages. The body
// is a multipart form carrying the turn fields plus the audio file part
// when the turn has an audio ref.
func (c *Client) UploadTurn(ctx context.Context, t turn.Turn) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	fields := map[string]string{
		"ID":      t.ID,
		"source":  string(t.Source),
		"time":    t.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		"date":    t.CreatedAt.Format("2006-01-02"),
		"text":    t.Text,
		"ownerId": t.OwnerID,
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return fmt.Errorf("backend: write form: %w", err)
		}
	}

	if t.AudioRef != "" {
		f, err := os.Open(t.AudioRef)
		if err != nil {
			return fmt.Errorf("backend: open audio: %w", err)
		}
		part, err := form.CreateFormFile("audio_file", filepath.Base(t.AudioRef))
		if err != nil {
			f.Close()
			return fmt.Errorf("backend: create file part: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return fmt.Errorf("backend: copy audio: %w", err)
		}
		f.Close()
	}

	if err := form.Close(); err != nil {
		return fmt.Errorf("backend: close form: %w", err)
	}
	body := buf.Bytes()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.do(ctx, req, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp)
	}

	c.logger.Debug("uploaded turn", "id", t.ID, "source", t.Source)
	return nil
}

// DeleteTurn removes one persisted turn by its identifier via
// DELETE /messages/{id}.
func (c *Client) DeleteTurn(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.config.BaseURL+"/messages/"+id, nil)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.do(ctx, req, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp)
	}

	c.logger.Debug("deleted turn", "id", id)
	return nil
}

// ListTurns fetches every persisted turn for an owner via
// GET /messages?ownerId={owner}. Unknown owners get an empty list, not an
// error.
func (c *Client) ListTurns(ctx context.Context, ownerID string) ([]turn.Turn, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.BaseURL+"/messages?ownerId="+url.QueryEscape(ownerID), nil)
	if err != nil {
		return nil, fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.do(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var payload struct {
		Messages []turn.Turn `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("backend: decode messages: %w", err)
	}
	return payload.Messages, nil
}

// ResetConversation clears the durable conversation history for the
// current owner via GET /reset. A non-success status is an error; callers
// must not clear local state unless this succeeds.
func (c *Client) ResetConversation(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.BaseURL+"/reset", nil)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.do(ctx, req, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseError(resp)
	}

	c.logger.Info("conversation reset acknowledged")
	return nil
}
