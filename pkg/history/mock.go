package history

import (
	"context"
	"sync"

	"github.com/guffawlabs/go-tutor/pkg/turn"
)

// MockRemote is an in-memory Remote for tests. Failures are injected per
// method; AppendAgentErr makes only the agent half of an append fail so
// tests can exercise the both-or-nothing contract.
type MockRemote struct {
	// AppendErr, LoadErr, ResetErr, DeleteErr inject failures.
	AppendErr error
	LoadErr   error
	ResetErr  error
	DeleteErr error

	mu      sync.Mutex
	stored  []turn.Turn
	deleted []string
	resets  int
}

var _ Remote = (*MockRemote)(nil)

// NewMockRemote creates an empty MockRemote.
func NewMockRemote(seed ...turn.Turn) *MockRemote {
	return &MockRemote{stored: seed}
}

// AppendPair stores both turns, or neither on injected failure.
func (m *MockRemote) AppendPair(_ context.Context, user, agent turn.Turn) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, user, agent)
	return nil
}

// Load returns the stored turns for the owner.
func (m *MockRemote) Load(_ context.Context, ownerID string) ([]turn.Turn, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []turn.Turn
	for _, t := range m.stored {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Reset drops everything stored.
func (m *MockRemote) Reset(_ context.Context) error {
	if m.ResetErr != nil {
		return m.ResetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = nil
	m.resets++
	return nil
}

// Delete removes every stored turn with the given id.
func (m *MockRemote) Delete(_ context.Context, id string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.stored[:0]
	for _, t := range m.stored {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	m.stored = kept
	m.deleted = append(m.deleted, id)
	return nil
}

// Stored returns a copy of everything the remote holds.
func (m *MockRemote) Stored() []turn.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]turn.Turn, len(m.stored))
	copy(out, m.stored)
	return out
}

// Deleted returns the ids deleted so far, in order.
func (m *MockRemote) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deleted))
	copy(out, m.deleted)
	return out
}

// Resets returns how many times Reset succeeded.
func (m *MockRemote) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}
