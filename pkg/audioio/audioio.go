// Package audioio provides microphone capture and speaker playback for the
// tutoring pipeline.
//
// Two backends are available: PortAudio for real devices and a mock for
// tests and CI machines without audio hardware. Capture and playback are
// mutually exclusive on most consumer hardware; the pipeline guarantees
// capture is fully stopped before playback starts, so backends do not need
// to support full-duplex operation.
package audioio

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendPortAudio uses PortAudio for cross-platform audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio device configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	Backend Backend

	// SampleRate is the audio sample rate in Hz.
	// Default: 16000, the rate the speech recognizer expects.
	SampleRate int

	// Channels is the number of audio channels. Default: 1 (mono).
	Channels int

	// BufferDuration is the size of audio buffers. Default: 20ms.
	BufferDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults for speech capture.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendPortAudio,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// BufferSize returns the buffer size in samples.
func (c Config) BufferSize() int {
	n := int(float64(c.SampleRate) * c.BufferDuration.Seconds())
	if n < 1 {
		n = 1
	}
	return n * c.Channels
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audioio: invalid sample rate %d", c.SampleRate)
	}
	if c.Channels < 1 || c.Channels > 2 {
		return fmt.Errorf("audioio: invalid channel count %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("audioio: invalid buffer duration %v", c.BufferDuration)
	}
	return nil
}

// Chunk represents a chunk of PCM16 audio.
type Chunk struct {
	// Samples contains PCM16 audio samples (little-endian when serialized).
	Samples []int16

	// SampleRate is the sample rate of this chunk.
	SampleRate int
}

// Bytes returns the raw little-endian bytes of the chunk.
func (c Chunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// Duration returns the playback duration of this chunk.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Source captures audio from a microphone.
type Source interface {
	// Start begins audio capture. Chunks become available on Stream.
	Start(ctx context.Context) error

	// Stop halts capture and closes the stream channel.
	// It is safe to call Stop multiple times.
	Stop() error

	// Stream returns the channel that receives captured chunks.
	Stream() <-chan Chunk

	// Config returns the device configuration.
	Config() Config

	// Close releases all resources. The source cannot be restarted after.
	io.Closer
}

// Sink plays audio to a speaker.
type Sink interface {
	// Start opens the output device.
	Start(ctx context.Context) error

	// Write plays one chunk, blocking until it is queued on the device.
	Write(ctx context.Context, chunk Chunk) error

	// Stop halts playback immediately, discarding queued audio.
	// It is safe to call Stop multiple times.
	Stop() error

	// Config returns the device configuration.
	Config() Config

	// Close releases all resources. The sink cannot be restarted after.
	io.Closer
}
