package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return &buf, form.FormDataContentType()
}

func uploadMessage(t *testing.T, s *Server, id, source, text, owner string) {
	t.Helper()
	body, contentType := multipartBody(t, map[string]string{
		"ID":      id,
		"source":  source,
		"time":    time.Now().Format("2006-01-02T15:04:05.000Z07:00"),
		"date":    time.Now().Format("2006-01-02"),
		"text":    text,
		"ownerId": owner,
	})

	req := httptest.NewRequest(http.MethodPost, "/messages", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d, want 200", resp.StatusCode)
	}
}

func listMessages(t *testing.T, s *Server, owner string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/messages?ownerId="+owner, nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return len(payload.Messages)
}

func TestSynthesize(t *testing.T) {
	s := NewServer()

	t.Run("returns audio for text", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"text": "hello"})
		req := httptest.NewRequest(http.MethodPost, "/synthesize", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := s.app.Test(req)
		if err != nil {
			t.Fatalf("Test() error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if got := resp.Header.Get("Content-Type"); got != "audio/mpeg" {
			t.Errorf("Content-Type = %q, want audio/mpeg", got)
		}
		audio, _ := io.ReadAll(resp.Body)
		if len(audio) == 0 {
			t.Error("empty audio body")
		}
	})

	t.Run("rejects missing text", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{})
		req := httptest.NewRequest(http.MethodPost, "/synthesize", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := s.app.Test(req)
		if err != nil {
			t.Fatalf("Test() error = %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestAgentReply(t *testing.T) {
	s := NewServer()

	req := httptest.NewRequest(http.MethodGet, "/agent-reply", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if payload.Text == "" {
		t.Error("empty reply text")
	}
}

func TestMessageLifecycle(t *testing.T) {
	s := NewServer()

	uploadMessage(t, s, "pair-1", "user", "hello", "owner-1")
	uploadMessage(t, s, "pair-1", "agent", "hi there", "owner-1")
	uploadMessage(t, s, "pair-2", "user", "bye", "owner-2")

	if got := listMessages(t, s, "owner-1"); got != 2 {
		t.Errorf("owner-1 messages = %d, want 2", got)
	}
	if got := listMessages(t, s, "owner-2"); got != 1 {
		t.Errorf("owner-2 messages = %d, want 1", got)
	}
	if got := listMessages(t, s, "nobody"); got != 0 {
		t.Errorf("unknown owner messages = %d, want 0", got)
	}

	// Deleting a pair id removes both halves.
	req := httptest.NewRequest(http.MethodDelete, "/messages/pair-1", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}
	if got := listMessages(t, s, "owner-1"); got != 0 {
		t.Errorf("owner-1 messages after delete = %d, want 0", got)
	}

	// A second delete of the same id is a 404.
	req = httptest.NewRequest(http.MethodDelete, "/messages/pair-1", nil)
	resp, err = s.app.Test(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestReset(t *testing.T) {
	s := NewServer()
	uploadMessage(t, s, "pair-1", "user", "hello", "owner-1")

	req := httptest.NewRequest(http.MethodGet, "/reset", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d, want 200", resp.StatusCode)
	}
	if got := listMessages(t, s, "owner-1"); got != 0 {
		t.Errorf("messages after reset = %d, want 0", got)
	}
}

func TestMissingUploadFields(t *testing.T) {
	s := NewServer()

	body, contentType := multipartBody(t, map[string]string{"text": "no id"})
	req := httptest.NewRequest(http.MethodPost, "/messages", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
