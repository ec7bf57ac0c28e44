package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guffawlabs/go-tutor/pkg/audioio"
)

// RecognizerConfig configures a WSRecognizer.
type RecognizerConfig struct {
	// URL is the websocket endpoint of the recognizer, e.g.
	// ws://host/listen.
	URL string

	// APIKey is sent as "Authorization: Token <key>" when non-empty.
	APIKey string

	// SampleRate and Channels describe the audio being streamed. They
	// are advertised to the service as query parameters.
	SampleRate int
	Channels   int

	// StopTimeout bounds how long Stop waits for the service to flush
	// its final results after the close message.
	StopTimeout time.Duration

	// Dialer allows tests to substitute the websocket dialer.
	Dialer *websocket.Dialer

	// Logger is the structured logger.
	Logger *slog.Logger
}

// RecognizerOption configures a WSRecognizer.
type RecognizerOption func(*RecognizerConfig)

// WithRecognizerAPIKey sets the service credential.
func WithRecognizerAPIKey(key string) RecognizerOption {
	return func(c *RecognizerConfig) {
		c.APIKey = key
	}
}

// WithRecognizerFormat sets the streamed audio format.
func WithRecognizerFormat(sampleRate, channels int) RecognizerOption {
	return func(c *RecognizerConfig) {
		c.SampleRate = sampleRate
		c.Channels = channels
	}
}

// WithRecognizerStopTimeout bounds the flush wait in Stop.
func WithRecognizerStopTimeout(d time.Duration) RecognizerOption {
	return func(c *RecognizerConfig) {
		c.StopTimeout = d
	}
}

// WithRecognizerDialer sets the websocket dialer.
func WithRecognizerDialer(d *websocket.Dialer) RecognizerOption {
	return func(c *RecognizerConfig) {
		c.Dialer = d
	}
}

// WithRecognizerLogger sets the structured logger.
func WithRecognizerLogger(logger *slog.Logger) RecognizerOption {
	return func(c *RecognizerConfig) {
		c.Logger = logger
	}
}

// recognizerMessage is the service's transcript frame. The shape follows
// the streaming speech APIs: alternatives under a channel, with a flag
// marking finalized segments.
type recognizerMessage struct {
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
		IsFinal bool `json:"is_final"`
	} `json:"channel"`
}

// WSRecognizer streams linear16 audio to a websocket speech-to-text
// service and accumulates its finalized transcript segments.
type WSRecognizer struct {
	config RecognizerConfig
	logger *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	finals   []string
	readDone chan struct{}
	readErr  error
}

var _ Recognizer = (*WSRecognizer)(nil)

// NewWSRecognizer creates a recognizer for the given websocket URL.
func NewWSRecognizer(url string, opts ...RecognizerOption) *WSRecognizer {
	cfg := RecognizerConfig{
		URL:         url,
		SampleRate:  16000,
		Channels:    1,
		StopTimeout: 5 * time.Second,
		Dialer:      websocket.DefaultDialer,
		Logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &WSRecognizer{
		config: cfg,
		logger: cfg.Logger.With("component", "capture.recognizer"),
	}
}

// Start dials the service. Stop and Destroy both tear the connection
// down, so each turn's Start opens a fresh connection.
func (r *WSRecognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	url := fmt.Sprintf("%s?encoding=linear16&sample_rate=%d&channels=%d",
		r.config.URL, r.config.SampleRate, r.config.Channels)

	header := http.Header{}
	if r.config.APIKey != "" {
		header.Set("Authorization", "Token "+r.config.APIKey)
	}

	conn, _, err := r.config.Dialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrUnavailable, r.config.URL, err)
	}

	r.conn = conn
	r.finals = nil
	r.readErr = nil
	r.readDone = make(chan struct{})
	go r.readLoop(conn, r.readDone)
	r.logger.Debug("recognizer connected", "url", r.config.URL)
	return nil
}

// readLoop collects finalized transcript segments until the service
// closes the connection.
func (r *WSRecognizer) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadDeadline(time.Time{})

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.mu.Lock()
				r.readErr = err
				r.mu.Unlock()
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var frame recognizerMessage
		if err := json.Unmarshal(msg, &frame); err != nil {
			r.logger.Warn("unparseable recognizer message", "error", err)
			continue
		}
		if !frame.Channel.IsFinal || len(frame.Channel.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(frame.Channel.Alternatives[0].Transcript); text != "" {
			r.mu.Lock()
			r.finals = append(r.finals, text)
			r.mu.Unlock()
		}
	}
}

// Write streams one chunk of audio to the service.
func (r *WSRecognizer) Write(_ context.Context, chunk audioio.Chunk) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, chunk.Bytes()); err != nil {
		return fmt.Errorf("capture: stream audio: %w", err)
	}
	return nil
}

// Stop tells the service the utterance is over, waits for the final
// results to flush, and returns the joined transcript.
func (r *WSRecognizer) Stop(ctx context.Context) (string, error) {
	r.mu.Lock()
	conn := r.conn
	done := r.readDone
	r.mu.Unlock()

	if conn == nil {
		return "", ErrNotConnected
	}

	// The utterance is over either way. Drop the connection on every
	// path so the next Start dials fresh instead of re-arming onto a
	// socket that already sent its close frame.
	defer func() {
		conn.Close()
		r.mu.Lock()
		if r.conn == conn {
			r.conn = nil
		}
		r.mu.Unlock()
	}()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "end of utterance")
	if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		r.logger.Warn("close message failed", "error", err)
	}

	select {
	case <-done:
	case <-time.After(r.config.StopTimeout):
		r.logger.Warn("recognizer flush timed out")
	case <-ctx.Done():
		return "", ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return "", fmt.Errorf("capture: recognizer stream: %w", r.readErr)
	}
	return strings.Join(r.finals, " "), nil
}

// Destroy closes the connection and drops accumulated state.
func (r *WSRecognizer) Destroy() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	r.finals = nil
	r.logger.Debug("recognizer destroyed")
	return err
}
