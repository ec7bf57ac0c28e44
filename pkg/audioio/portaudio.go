package audioio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	initMu   sync.Mutex
	initRefs int
)

// acquire initializes PortAudio on first use and tracks references so
// Terminate runs only after the last device closes.
func acquire() error {
	initMu.Lock()
	defer initMu.Unlock()
	if initRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("audioio: initialize portaudio: %w", err)
		}
	}
	initRefs++
	return nil
}

func release() {
	initMu.Lock()
	defer initMu.Unlock()
	initRefs--
	if initRefs == 0 {
		_ = portaudio.Terminate()
	}
}

// PortAudioSource captures microphone audio via PortAudio.
type PortAudioSource struct {
	cfg Config

	mu       sync.Mutex
	stream   *portaudio.Stream
	buffer   []int16
	streamCh chan Chunk
	stopCh   chan struct{}
	running  bool
	closed   bool
}

// NewPortAudioSource creates a microphone source on the default device.
func NewPortAudioSource(cfg Config) (*PortAudioSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := acquire(); err != nil {
		return nil, err
	}
	return &PortAudioSource{
		cfg:      cfg,
		buffer:   make([]int16, cfg.BufferSize()),
		streamCh: make(chan Chunk, 16),
	}, nil
}

// Start begins audio capture.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(
		s.cfg.Channels, 0, float64(s.cfg.SampleRate), len(s.buffer), &s.buffer)
	if err != nil {
		return fmt.Errorf("audioio: open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("audioio: start capture stream: %w", err)
	}

	s.stream = stream
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan Chunk, 16)
	s.running = true

	go s.captureLoop(ctx, stream, s.stopCh, s.streamCh)
	return nil
}

func (s *PortAudioSource) captureLoop(ctx context.Context, stream *portaudio.Stream, stopCh chan struct{}, out chan Chunk) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			return
		}

		frame := make([]int16, len(s.buffer))
		copy(frame, s.buffer)

		select {
		case out <- Chunk{Samples: frame, SampleRate: s.cfg.SampleRate}:
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop halts capture.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)

	var err error
	if s.stream != nil {
		err = s.stream.Stop()
		s.stream.Close()
		s.stream = nil
	}
	return err
}

// Stream returns the channel of captured chunks.
func (s *PortAudioSource) Stream() <-chan Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the device configuration.
func (s *PortAudioSource) Config() Config {
	return s.cfg
}

// Close stops capture and releases PortAudio.
func (s *PortAudioSource) Close() error {
	err := s.Stop()
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		release()
	}
	s.mu.Unlock()
	return err
}

// PortAudioSink plays PCM16 audio via PortAudio.
type PortAudioSink struct {
	cfg Config

	mu      sync.Mutex
	stream  *portaudio.Stream
	buffer  []int16
	running bool
	closed  bool
}

// NewPortAudioSink creates a speaker sink on the default device.
func NewPortAudioSink(cfg Config) (*PortAudioSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := acquire(); err != nil {
		return nil, err
	}
	return &PortAudioSink{
		cfg:    cfg,
		buffer: make([]int16, cfg.BufferSize()),
	}, nil
}

// Start opens the output device.
func (p *PortAudioSink) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return io.ErrClosedPipe
	}
	if p.running {
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(
		0, p.cfg.Channels, float64(p.cfg.SampleRate), len(p.buffer), &p.buffer)
	if err != nil {
		return fmt.Errorf("audioio: open playback stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("audioio: start playback stream: %w", err)
	}

	p.stream = stream
	p.running = true
	return nil
}

// Write plays one chunk, resampling to the device rate when needed.
func (p *PortAudioSink) Write(ctx context.Context, chunk Chunk) error {
	samples := chunk.Samples
	if chunk.SampleRate != 0 && chunk.SampleRate != p.cfg.SampleRate {
		samples = Resample(samples, chunk.SampleRate, p.cfg.SampleRate)
	}

	offset := 0
	for offset < len(samples) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p.mu.Lock()
		if !p.running {
			p.mu.Unlock()
			return io.ErrClosedPipe
		}
		n := copy(p.buffer, samples[offset:])
		for i := n; i < len(p.buffer); i++ {
			p.buffer[i] = 0
		}
		stream := p.stream
		p.mu.Unlock()

		offset += n
		if err := stream.Write(); err != nil {
			return fmt.Errorf("audioio: write playback stream: %w", err)
		}
	}
	return nil
}

// Stop halts playback immediately.
func (p *PortAudioSink) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false

	var err error
	if p.stream != nil {
		err = p.stream.Stop()
		p.stream.Close()
		p.stream = nil
	}
	return err
}

// Config returns the device configuration.
func (p *PortAudioSink) Config() Config {
	return p.cfg
}

// Close stops playback and releases PortAudio.
func (p *PortAudioSink) Close() error {
	err := p.Stop()
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		release()
	}
	p.mu.Unlock()
	return err
}

// Compile-time interface checks.
var (
	_ Source = (*PortAudioSource)(nil)
	_ Sink   = (*PortAudioSink)(nil)
)
