// Package capture records the learner's speech and transcribes it.
//
// A Session tees microphone audio into two consumers at once: a Recognizer
// that streams it to a speech-to-text service, and a Recorder that keeps a
// local copy so the learner can listen back to their own turn. Stopping a
// session yields both the transcript and the recording ref. The recognizer
// engine is torn down with Destroy after each genuine turn so the next
// turn starts from a clean engine.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/guffawlabs/go-tutor/pkg/audioio"
)

// Recognizer streams audio to a speech-to-text engine.
type Recognizer interface {
	// Start connects the engine. Starting after Destroy reconnects.
	Start(ctx context.Context) error

	// Write feeds one chunk of audio to the engine.
	Write(ctx context.Context, chunk audioio.Chunk) error

	// Stop finishes the utterance and returns the accumulated
	// transcript, which may be empty when nothing was recognized.
	Stop(ctx context.Context) (string, error)

	// Destroy tears the engine down.
	Destroy() error
}

// Recorder keeps a local copy of the captured audio.
type Recorder interface {
	Start(ctx context.Context) error
	Write(chunk audioio.Chunk) error

	// Stop finalizes the recording and returns its ref.
	Stop() (string, error)
}

// Result is what a completed capture produces.
type Result struct {
	// Transcript is the recognized text, empty when recognition found
	// no speech.
	Transcript string

	// RecordingRef locates the local copy of the learner's audio.
	RecordingRef string
}

// Session drives one press-to-release capture.
type Session struct {
	source     audioio.Source
	recognizer Recognizer
	recorder   Recorder
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the structured logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession wires a microphone source to a recognizer and recorder.
func NewSession(source audioio.Source, recognizer Recognizer, recorder Recorder, opts ...SessionOption) *Session {
	s := &Session{
		source:     source,
		recognizer: recognizer,
		recorder:   recorder,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "capture")
	return s
}

// Start begins capturing. Audio flows to both the recognizer and the
// recorder until Stop.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyCapturing
	}

	if err := s.recognizer.Start(ctx); err != nil {
		return fmt.Errorf("capture: start recognizer: %w", err)
	}
	if err := s.recorder.Start(ctx); err != nil {
		s.recognizer.Destroy()
		return fmt.Errorf("capture: start recorder: %w", err)
	}
	if err := s.source.Start(ctx); err != nil {
		s.recognizer.Destroy()
		return fmt.Errorf("capture: start source: %w", err)
	}

	s.running = true
	s.done = make(chan struct{})
	go s.pump(ctx, s.done)
	s.logger.Debug("capture started")
	return nil
}

// pump tees source chunks into the recognizer and recorder until the
// source stream closes.
func (s *Session) pump(ctx context.Context, done chan struct{}) {
	defer close(done)

	for chunk := range s.source.Stream() {
		if err := s.recognizer.Write(ctx, chunk); err != nil {
			s.logger.Warn("recognizer write failed", "error", err)
		}
		if err := s.recorder.Write(chunk); err != nil {
			s.logger.Warn("recorder write failed", "error", err)
		}
	}
}

// Stop ends the capture and returns the transcript and recording ref.
func (s *Session) Stop(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return Result{}, ErrNotCapturing
	}
	s.running = false

	if err := s.source.Stop(); err != nil {
		s.logger.Warn("source stop failed", "error", err)
	}
	<-s.done

	ref, err := s.recorder.Stop()
	if err != nil {
		return Result{}, fmt.Errorf("capture: finalize recording: %w", err)
	}

	transcript, err := s.recognizer.Stop(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("capture: finalize transcript: %w", err)
	}

	s.logger.Debug("capture stopped", "transcript_len", len(transcript), "recording", ref)
	return Result{Transcript: transcript, RecordingRef: ref}, nil
}

// Destroy tears down the recognizer engine. Called once after each
// completed genuine turn; the next Start brings up a fresh engine.
func (s *Session) Destroy() error {
	return s.recognizer.Destroy()
}
