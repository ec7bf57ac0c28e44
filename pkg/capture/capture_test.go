package capture

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guffawlabs/go-tutor/pkg/audioio"
)

func TestSession(t *testing.T) {
	cfg := audioio.Config{SampleRate: 16000, Channels: 1}
	newChunk := func(v int16) audioio.Chunk {
		return audioio.Chunk{Samples: []int16{v, v}, SampleRate: 16000}
	}

	t.Run("tees audio into recognizer and recorder", func(t *testing.T) {
		source := audioio.NewMockSource(cfg, newChunk(1), newChunk(2), newChunk(3))
		rec := &MockRecognizer{Transcript: "hello there"}
		recorder := &MockRecorder{Ref: "/tmp/turn-1.pcm"}
		s := NewSession(source, rec, recorder)

		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		result, err := s.Stop(context.Background())
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		if result.Transcript != "hello there" {
			t.Errorf("Transcript = %q, want %q", result.Transcript, "hello there")
		}
		if result.RecordingRef != "/tmp/turn-1.pcm" {
			t.Errorf("RecordingRef = %q, want %q", result.RecordingRef, "/tmp/turn-1.pcm")
		}
		if got := len(rec.Chunks()); got != 3 {
			t.Errorf("recognizer chunks = %d, want 3", got)
		}
		if got := recorder.Written(); got != 3 {
			t.Errorf("recorder chunks = %d, want 3", got)
		}
	})

	t.Run("double start is rejected", func(t *testing.T) {
		source := audioio.NewMockSource(cfg)
		s := NewSession(source, &MockRecognizer{}, &MockRecorder{})

		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyCapturing) {
			t.Errorf("second Start() error = %v, want ErrAlreadyCapturing", err)
		}
	})

	t.Run("stop without start is rejected", func(t *testing.T) {
		s := NewSession(audioio.NewMockSource(cfg), &MockRecognizer{}, &MockRecorder{})
		if _, err := s.Stop(context.Background()); !errors.Is(err, ErrNotCapturing) {
			t.Errorf("Stop() error = %v, want ErrNotCapturing", err)
		}
	})

	t.Run("recorder start failure tears down the recognizer", func(t *testing.T) {
		rec := &MockRecognizer{}
		recorder := &MockRecorder{StartErr: errors.New("disk full")}
		s := NewSession(audioio.NewMockSource(cfg), rec, recorder)

		if err := s.Start(context.Background()); err == nil {
			t.Fatal("Start() error = nil, want recorder failure")
		}
		if got := rec.CallCount("Destroy"); got != 1 {
			t.Errorf("recognizer Destroy count = %d, want 1", got)
		}
	})

	t.Run("destroy reaches the recognizer", func(t *testing.T) {
		rec := &MockRecognizer{}
		s := NewSession(audioio.NewMockSource(cfg), rec, &MockRecorder{})

		if err := s.Destroy(); err != nil {
			t.Fatalf("Destroy() error = %v", err)
		}
		if got := rec.CallCount("Destroy"); got != 1 {
			t.Errorf("Destroy count = %d, want 1", got)
		}
	})
}

func TestFileRecorder(t *testing.T) {
	t.Run("records chunks to a pcm file", func(t *testing.T) {
		rec := NewFileRecorder(t.TempDir())

		if err := rec.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		chunk := audioio.Chunk{Samples: []int16{1, -1, 2}, SampleRate: 16000}
		if err := rec.Write(chunk); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		ref, err := rec.Stop()
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		if !strings.HasSuffix(ref, ".pcm") {
			t.Errorf("ref = %q, want .pcm suffix", ref)
		}

		data, err := os.ReadFile(ref)
		if err != nil {
			t.Fatalf("read recording: %v", err)
		}
		if len(data) != 6 {
			t.Errorf("recording size = %d bytes, want 6", len(data))
		}
	})

	t.Run("consecutive recordings get distinct refs", func(t *testing.T) {
		rec := NewFileRecorder(t.TempDir())

		if err := rec.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		first, err := rec.Stop()
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}

		if err := rec.Start(context.Background()); err != nil {
			t.Fatalf("second Start() error = %v", err)
		}
		second, err := rec.Stop()
		if err != nil {
			t.Fatalf("second Stop() error = %v", err)
		}

		if first == second {
			t.Errorf("refs collide: %q", first)
		}
	})

	t.Run("write before start is rejected", func(t *testing.T) {
		rec := NewFileRecorder(t.TempDir())
		err := rec.Write(audioio.Chunk{Samples: []int16{1}})
		if !errors.Is(err, ErrNotCapturing) {
			t.Errorf("Write() error = %v, want ErrNotCapturing", err)
		}
	})
}

// recognizerServer upgrades connections and sends scripted transcript
// frames after the first audio chunk arrives.
func recognizerServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		sent := false
		for {
			msgType, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage && !sent {
				sent = true
				for _, f := range frames {
					if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
						return
					}
				}
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSRecognizer(t *testing.T) {
	chunk := audioio.Chunk{Samples: []int16{1, 2, 3}, SampleRate: 16000}

	t.Run("accumulates final transcript segments", func(t *testing.T) {
		srv := recognizerServer(t, []string{
			`{"channel":{"alternatives":[{"transcript":"hello"}],"is_final":true}}`,
			`{"channel":{"alternatives":[{"transcript":"hel"}],"is_final":false}}`,
			`{"channel":{"alternatives":[{"transcript":"world"}],"is_final":true}}`,
		})
		defer srv.Close()

		r := NewWSRecognizer(wsURL(srv), WithRecognizerStopTimeout(2*time.Second))
		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer r.Destroy()

		if err := r.Write(context.Background(), chunk); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		// Give the scripted frames time to arrive before closing.
		time.Sleep(100 * time.Millisecond)

		got, err := r.Stop(context.Background())
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		if got != "hello world" {
			t.Errorf("transcript = %q, want %q", got, "hello world")
		}
	})

	t.Run("empty results yield an empty transcript", func(t *testing.T) {
		srv := recognizerServer(t, []string{
			`{"channel":{"alternatives":[{"transcript":""}],"is_final":true}}`,
		})
		defer srv.Close()

		r := NewWSRecognizer(wsURL(srv), WithRecognizerStopTimeout(2*time.Second))
		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer r.Destroy()

		if err := r.Write(context.Background(), chunk); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		time.Sleep(100 * time.Millisecond)

		got, err := r.Stop(context.Background())
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		if got != "" {
			t.Errorf("transcript = %q, want empty", got)
		}
	})

	t.Run("unreachable service maps to ErrUnavailable", func(t *testing.T) {
		r := NewWSRecognizer("ws://127.0.0.1:1/listen")
		err := r.Start(context.Background())
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("Start() error = %v, want ErrUnavailable", err)
		}
	})

	t.Run("write before start is rejected", func(t *testing.T) {
		r := NewWSRecognizer("ws://example.invalid/listen")
		err := r.Write(context.Background(), chunk)
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("Write() error = %v, want ErrNotConnected", err)
		}
	})

	t.Run("a stopped recognizer starts fresh for the next turn", func(t *testing.T) {
		var mu sync.Mutex
		conns := 0
		upgrader := websocket.Upgrader{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			mu.Lock()
			conns++
			n := conns
			mu.Unlock()

			conn, err := upgrader.Upgrade(w, req, nil)
			if err != nil {
				t.Errorf("upgrade: %v", err)
				return
			}
			defer conn.Close()

			sent := false
			for {
				msgType, _, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if msgType == websocket.BinaryMessage && !sent {
					sent = true
					frame := fmt.Sprintf(`{"channel":{"alternatives":[{"transcript":"turn %d"}],"is_final":true}}`, n)
					if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
						return
					}
				}
			}
		}))
		defer srv.Close()

		r := NewWSRecognizer(wsURL(srv), WithRecognizerStopTimeout(2*time.Second))

		// Two turns without Destroy in between, as happens after a
		// fallback turn. The second must stream over a new connection
		// and must not replay the first turn's transcript.
		for i, want := range []string{"turn 1", "turn 2"} {
			if err := r.Start(context.Background()); err != nil {
				t.Fatalf("Start() turn %d error = %v", i+1, err)
			}
			if err := r.Write(context.Background(), chunk); err != nil {
				t.Fatalf("Write() turn %d error = %v", i+1, err)
			}
			time.Sleep(100 * time.Millisecond)

			got, err := r.Stop(context.Background())
			if err != nil {
				t.Fatalf("Stop() turn %d error = %v", i+1, err)
			}
			if got != want {
				t.Errorf("turn %d transcript = %q, want %q", i+1, got, want)
			}
		}
	})

	t.Run("start after destroy reconnects", func(t *testing.T) {
		srv := recognizerServer(t, nil)
		defer srv.Close()

		r := NewWSRecognizer(wsURL(srv), WithRecognizerStopTimeout(time.Second))
		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := r.Destroy(); err != nil {
			t.Fatalf("Destroy() error = %v", err)
		}
		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("Start() after Destroy error = %v", err)
		}
		r.Destroy()
	})
}
