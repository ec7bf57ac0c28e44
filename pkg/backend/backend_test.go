package backend_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guffawlabs/go-tutor/pkg/backend"
	"github.com/guffawlabs/go-tutor/pkg/turn"
)

func newClient(t *testing.T, url string, opts ...backend.Option) *backend.Client {
	t.Helper()
	opts = append([]backend.Option{backend.WithBaseURL(url)}, opts...)
	c, err := backend.New(opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := backend.New()
		if !errors.Is(err, backend.ErrNoBaseURL) {
			t.Errorf("expected ErrNoBaseURL, got %v", err)
		}
	})
}

func TestSynthesize(t *testing.T) {
	ctx := context.Background()

	t.Run("returns audio payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/synthesize" || r.Method != http.MethodPost {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if got := r.FormValue("text"); got != "Hello world" {
				t.Errorf("expected text field, got %q", got)
			}
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Write([]byte("mpeg-bytes"))
		}))
		defer srv.Close()

		audio, err := newClient(t, srv.URL).Synthesize(ctx, "Hello world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(audio, []byte("mpeg-bytes")) {
			t.Errorf("unexpected audio: %q", audio)
		}
	})

	t.Run("maps non-success status to APIError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"text too long","code":"text_length"}}`))
		}))
		defer srv.Close()

		_, err := newClient(t, srv.URL).Synthesize(ctx, "Hello")
		var apiErr *backend.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", apiErr.StatusCode)
		}
		if apiErr.Message != "text too long" || apiErr.Code != "text_length" {
			t.Errorf("unexpected parse: %+v", apiErr)
		}
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("ok"))
		}))
		defer srv.Close()

		client := newClient(t, srv.URL, backend.WithRetry(2, time.Millisecond))
		audio, err := client.Synthesize(ctx, "Hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(audio) != "ok" {
			t.Errorf("unexpected audio: %q", audio)
		}
		if got := atomic.LoadInt32(&calls); got != 2 {
			t.Errorf("expected 2 attempts, got %d", got)
		}
	})
}

func TestSaveAudio(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio")
	ref, err := backend.SaveAudio([]byte("blob"), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		t.Fatalf("read saved audio: %v", err)
	}
	if string(data) != "blob" {
		t.Errorf("unexpected content: %q", data)
	}

	ref2, err := backend.SaveAudio([]byte("blob"), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref2 == ref {
		t.Error("expected distinct refs per save")
	}
}

func TestAgentReply(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes reply text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/agent-reply" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			w.Write([]byte(`{"text":"hi there"}`))
		}))
		defer srv.Close()

		text, err := newClient(t, srv.URL).AgentReply(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "hi there" {
			t.Errorf("expected reply text, got %q", text)
		}
	})

	t.Run("empty text is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		_, err := newClient(t, srv.URL).AgentReply(ctx)
		if !errors.Is(err, backend.ErrEmptyReply) {
			t.Errorf("expected ErrEmptyReply, got %v", err)
		}
	})
}

func TestUploadTurn(t *testing.T) {
	ctx := context.Background()

	audioPath := filepath.Join(t.TempDir(), "user.m4a")
	if err := os.WriteFile(audioPath, []byte("m4a-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)
	userTurn := turn.Turn{
		ID:        "pair-1",
		Source:    turn.SourceUser,
		AudioRef:  audioPath,
		Text:      "hello",
		CreatedAt: at,
		OwnerID:   "owner-1",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		want := map[string]string{
			"ID":      "pair-1",
			"source":  "user",
			"date":    "2024-03-10",
			"text":    "hello",
			"ownerId": "owner-1",
		}
		for name, value := range want {
			if got := r.FormValue(name); got != value {
				t.Errorf("field %s: expected %q, got %q", name, value, got)
			}
		}
		f, header, err := r.FormFile("audio_file")
		if err != nil {
			t.Fatalf("audio part: %v", err)
		}
		defer f.Close()
		if header.Filename != "user.m4a" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	if err := newClient(t, srv.URL).UploadTurn(ctx, userTurn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListTurns(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes the message list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/messages" || r.URL.Query().Get("ownerId") != "owner-1" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.String())
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"messages":[{"id":"pair-1","source":"user","text":"hello"}]}`))
		}))
		defer srv.Close()

		turns, err := newClient(t, srv.URL).ListTurns(ctx, "owner-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(turns) != 1 || turns[0].ID != "pair-1" || turns[0].Source != turn.SourceUser {
			t.Errorf("unexpected turns: %+v", turns)
		}
	})

	t.Run("unknown owner yields an empty list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"messages":[]}`))
		}))
		defer srv.Close()

		turns, err := newClient(t, srv.URL).ListTurns(ctx, "nobody")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(turns) != 0 {
			t.Errorf("expected no turns, got %+v", turns)
		}
	})
}

func TestDeleteTurn(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/messages/pair-1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := newClient(t, srv.URL).DeleteTurn(ctx, "pair-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResetConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("success on 200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/reset" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			w.Write([]byte(`{"status":"reset"}`))
		}))
		defer srv.Close()

		if err := newClient(t, srv.URL).ResetConversation(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("non-success is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		err := newClient(t, srv.URL).ResetConversation(ctx)
		var apiErr *backend.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %d", apiErr.StatusCode)
		}
	})
}
