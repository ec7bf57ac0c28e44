package audioio

import (
	"context"
	"io"
	"sync"
)

// MockSource is a scripted audio source for testing. It emits the queued
// chunks in order and then blocks until stopped.
type MockSource struct {
	cfg Config

	mu      sync.Mutex
	queued  []Chunk
	ch      chan Chunk
	running bool
	closed  bool

	starts int
	stops  int
}

// NewMockSource creates a mock source that will emit the given chunks.
func NewMockSource(cfg Config, chunks ...Chunk) *MockSource {
	return &MockSource{cfg: cfg, queued: chunks}
}

// Start begins emitting queued chunks.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}
	m.running = true
	m.starts++

	ch := make(chan Chunk, len(m.queued))
	for _, c := range m.queued {
		ch <- c
	}
	m.ch = ch
	return nil
}

// Stop halts the source and closes the stream channel.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	m.stops++
	close(m.ch)
	return nil
}

// Stream returns the chunk channel.
func (m *MockSource) Stream() <-chan Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ch
}

// Config returns the configuration.
func (m *MockSource) Config() Config { return m.cfg }

// Close marks the source unusable.
func (m *MockSource) Close() error {
	m.Stop()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Starts returns how many times Start ran.
func (m *MockSource) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// MockSink records every chunk written to it.
type MockSink struct {
	cfg Config

	mu      sync.Mutex
	written []Chunk
	running bool
	stops   int
}

// NewMockSink creates a recording sink.
func NewMockSink(cfg Config) *MockSink {
	return &MockSink{cfg: cfg}
}

// Start marks the sink running.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	return nil
}

// Write records the chunk.
func (m *MockSink) Write(ctx context.Context, chunk Chunk) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return io.ErrClosedPipe
	}
	m.written = append(m.written, chunk)
	return nil
}

// Stop halts the sink.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.running = false
		m.stops++
	}
	return nil
}

// Config returns the configuration.
func (m *MockSink) Config() Config { return m.cfg }

// Close stops the sink.
func (m *MockSink) Close() error { return m.Stop() }

// Written returns a copy of the recorded chunks.
func (m *MockSink) Written() []Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Chunk, len(m.written))
	copy(out, m.written)
	return out
}

// Compile-time interface checks.
var (
	_ Source = (*MockSource)(nil)
	_ Sink   = (*MockSink)(nil)
)
