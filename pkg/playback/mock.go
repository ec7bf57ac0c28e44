package playback

import (
	"context"
	"fmt"
	"sync"
)

// MockEngine is a test double that records every call in order. Tests
// trigger natural completion with FinishNow.
type MockEngine struct {
	mu       sync.Mutex
	calls    []string
	loaded   string
	onFinish func()

	// LoadErr, PlayErr, PauseErr inject failures when non-nil.
	LoadErr  error
	PlayErr  error
	PauseErr error
}

var _ Engine = (*MockEngine)(nil)

// NewMockEngine creates a MockEngine.
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

func (m *MockEngine) record(call string) {
	m.calls = append(m.calls, call)
}

// Load records the call and remembers ref as loaded.
func (m *MockEngine) Load(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Load:" + ref)
	if m.LoadErr != nil {
		return m.LoadErr
	}
	m.loaded = ref
	return nil
}

// Unload records the call and clears the loaded ref.
func (m *MockEngine) Unload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Unload:" + m.loaded)
	m.loaded = ""
	return nil
}

// Play records the call.
func (m *MockEngine) Play(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Play")
	if m.PlayErr != nil {
		return m.PlayErr
	}
	if m.loaded == "" {
		return ErrNoResource
	}
	return nil
}

// Pause records the call.
func (m *MockEngine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Pause")
	if m.PauseErr != nil {
		return m.PauseErr
	}
	if m.loaded == "" {
		return ErrNoResource
	}
	return nil
}

// Stop records the call.
func (m *MockEngine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Stop")
	if m.loaded == "" {
		return ErrNoResource
	}
	return nil
}

// SetOnFinish registers the completion callback.
func (m *MockEngine) SetOnFinish(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFinish = fn
}

// FinishNow simulates natural completion of the loaded resource.
func (m *MockEngine) FinishNow() {
	m.mu.Lock()
	fn := m.onFinish
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Loaded returns the currently loaded ref.
func (m *MockEngine) Loaded() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Calls returns every recorded call in order.
func (m *MockEngine) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many recorded calls have the given prefix, so
// CallCount("Load") counts loads of any ref.
func (m *MockEngine) CallCount(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == prefix || len(c) > len(prefix) && c[:len(prefix)+1] == prefix+":" {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (m *MockEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// String helps test failure output.
func (m *MockEngine) String() string {
	return fmt.Sprintf("MockEngine(loaded=%q, calls=%d)", m.Loaded(), len(m.Calls()))
}
