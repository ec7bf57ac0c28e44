package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/guffawlabs/go-tutor/pkg/audioio"
)

// Engine is the low-level playback surface the Controller drives. Engines
// hold at most one loaded resource; on natural completion they rewind to
// the start and invoke the finish callback.
type Engine interface {
	// Load decodes ref and prepares it for playback.
	Load(ctx context.Context, ref string) error

	// Unload releases the loaded resource.
	Unload() error

	// Play starts or resumes playback of the loaded resource.
	Play(ctx context.Context) error

	// Pause halts playback keeping the current position.
	Pause() error

	// Stop halts playback and rewinds to the start.
	Stop() error

	// SetOnFinish registers the natural-completion callback.
	SetOnFinish(fn func())
}

const framesPerWrite = 20 // milliseconds of audio per sink write

type engineStatus int

const (
	statusUnloaded engineStatus = iota
	statusLoaded
	statusPlaying
	statusPaused
)

// DeviceEngine plays decoded PCM through an audioio.Sink.
type DeviceEngine struct {
	sink   audioio.Sink
	logger *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	status   engineStatus
	samples  []int16
	rate     int
	offset   int
	gen      int
	onFinish func()
}

var _ Engine = (*DeviceEngine)(nil)

// NewDeviceEngine creates an engine writing to sink.
func NewDeviceEngine(sink audioio.Sink, logger *slog.Logger) *DeviceEngine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &DeviceEngine{
		sink:   sink,
		logger: logger.With("component", "playback.engine"),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// SetOnFinish registers the natural-completion callback.
func (e *DeviceEngine) SetOnFinish(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFinish = fn
}

// Load decodes the audio file at ref.
func (e *DeviceEngine) Load(ctx context.Context, ref string) error {
	samples, rate, err := DecodeFile(ref)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != statusUnloaded {
		e.gen++
		e.cond.Broadcast()
	}
	e.samples = samples
	e.rate = rate
	e.offset = 0
	e.status = statusLoaded
	e.logger.Debug("loaded", "ref", ref, "samples", len(samples), "rate", rate)
	return nil
}

// Unload stops playback and releases the decoded samples.
func (e *DeviceEngine) Unload() error {
	e.mu.Lock()
	e.gen++
	e.cond.Broadcast()
	e.samples = nil
	e.offset = 0
	e.status = statusUnloaded
	e.mu.Unlock()

	return e.sink.Stop()
}

// Play starts or resumes playback.
func (e *DeviceEngine) Play(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.status {
	case statusUnloaded:
		return ErrNoResource
	case statusPlaying:
		return nil
	case statusPaused:
		e.status = statusPlaying
		e.cond.Broadcast()
		return nil
	}

	if err := e.sink.Start(ctx); err != nil {
		return fmt.Errorf("playback: start sink: %w", err)
	}
	e.status = statusPlaying
	go e.run(e.gen)
	return nil
}

// Pause halts playback keeping the position.
func (e *DeviceEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == statusUnloaded {
		return ErrNoResource
	}
	if e.status == statusPlaying {
		e.status = statusPaused
	}
	return nil
}

// Stop halts playback and rewinds.
func (e *DeviceEngine) Stop() error {
	e.mu.Lock()
	if e.status == statusUnloaded {
		e.mu.Unlock()
		return ErrNoResource
	}
	e.gen++
	e.cond.Broadcast()
	e.offset = 0
	e.status = statusLoaded
	e.mu.Unlock()

	return e.sink.Stop()
}

// run streams the decoded samples to the sink in small chunks until the
// end is reached, the engine is paused, or gen is invalidated.
func (e *DeviceEngine) run(gen int) {
	e.mu.Lock()
	chunkSamples := e.rate * framesPerWrite / 1000
	e.mu.Unlock()

	for {
		e.mu.Lock()
		for e.status == statusPaused && e.gen == gen {
			e.cond.Wait()
		}
		if e.gen != gen || e.status != statusPlaying {
			e.mu.Unlock()
			return
		}

		if e.offset >= len(e.samples) {
			e.offset = 0
			e.status = statusLoaded
			fin := e.onFinish
			e.mu.Unlock()

			if err := e.sink.Stop(); err != nil {
				e.logger.Warn("sink stop failed", "error", err)
			}
			if fin != nil {
				fin()
			}
			return
		}

		end := e.offset + chunkSamples
		if end > len(e.samples) {
			end = len(e.samples)
		}
		chunk := audioio.Chunk{
			Samples:    e.samples[e.offset:end],
			SampleRate: e.rate,
		}
		e.offset = end
		e.mu.Unlock()

		if err := e.sink.Write(context.Background(), chunk); err != nil {
			e.logger.Warn("sink write failed", "error", err)
			return
		}
	}
}
