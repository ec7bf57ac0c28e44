package capture

import (
	"context"
	"sync"

	"github.com/guffawlabs/go-tutor/pkg/audioio"
)

// MockRecognizer is a test double returning a scripted transcript and
// recording every call.
type MockRecognizer struct {
	// Transcript is returned from Stop.
	Transcript string

	// StartErr, StopErr inject failures when non-nil.
	StartErr error
	StopErr  error

	mu     sync.Mutex
	calls  []string
	chunks []audioio.Chunk
}

var _ Recognizer = (*MockRecognizer)(nil)

func (m *MockRecognizer) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Start records the call.
func (m *MockRecognizer) Start(_ context.Context) error {
	m.record("Start")
	return m.StartErr
}

// Write records the chunk.
func (m *MockRecognizer) Write(_ context.Context, chunk audioio.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "Write")
	m.chunks = append(m.chunks, chunk)
	return nil
}

// Stop records the call and returns the scripted transcript.
func (m *MockRecognizer) Stop(_ context.Context) (string, error) {
	m.record("Stop")
	if m.StopErr != nil {
		return "", m.StopErr
	}
	return m.Transcript, nil
}

// Destroy records the call.
func (m *MockRecognizer) Destroy() error {
	m.record("Destroy")
	return nil
}

// Chunks returns every written chunk.
func (m *MockRecognizer) Chunks() []audioio.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audioio.Chunk, len(m.chunks))
	copy(out, m.chunks)
	return out
}

// CallCount returns how many times method was called.
func (m *MockRecognizer) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

// MockRecorder is a test double that counts written chunks and returns a
// scripted ref.
type MockRecorder struct {
	// Ref is returned from Stop.
	Ref string

	// StartErr injects a failure when non-nil.
	StartErr error

	mu      sync.Mutex
	started bool
	written int
}

var _ Recorder = (*MockRecorder)(nil)

// Start marks the recorder running.
func (m *MockRecorder) Start(_ context.Context) error {
	if m.StartErr != nil {
		return m.StartErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

// Write counts the chunk.
func (m *MockRecorder) Write(_ audioio.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotCapturing
	}
	m.written++
	return nil
}

// Stop returns the scripted ref.
func (m *MockRecorder) Stop() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return "", ErrNotCapturing
	}
	m.started = false
	return m.Ref, nil
}

// Written returns how many chunks were written.
func (m *MockRecorder) Written() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}
