// Package history keeps the paired conversation history.
//
// The Store owns the live in-memory per-source sequences for one owner; a
// Remote is the durable owner. Appends are both-or-nothing: a pair reaches
// the in-memory sequences only after the remote accepted it, so the local
// view never shows a pair the remote may not have. The sequences are
// append-only during a session; reset and delete are explicit remote
// operations.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/guffawlabs/go-tutor/pkg/turn"
)

// Store holds the live conversation history for one owner.
type Store struct {
	remote Remote
	owner  string
	logger *slog.Logger

	mu     sync.Mutex
	users  []turn.Turn
	agents []turn.Turn
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the structured logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store persisting through remote.
func NewStore(remote Remote, owner string, opts ...StoreOption) *Store {
	s := &Store{
		remote: remote,
		owner:  owner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "history", "owner", owner)
	return s
}

// AppendPair persists one user/agent pair and, only when the remote
// accepted it, appends it to the live sequences. A failed append leaves
// the local sequences untouched.
func (s *Store) AppendPair(ctx context.Context, user, agent turn.Turn) error {
	if user.ID != agent.ID {
		return fmt.Errorf("%w: user %s, agent %s", ErrUnpaired, user.ID, agent.ID)
	}

	if err := s.remote.AppendPair(ctx, user, agent); err != nil {
		return fmt.Errorf("history: append pair %s: %w", user.ID, err)
	}

	s.mu.Lock()
	s.users = append(s.users, user)
	s.agents = append(s.agents, agent)
	s.mu.Unlock()

	s.logger.Debug("pair appended", "id", user.ID)
	return nil
}

// Reset clears the durable history and, only on success, the live
// sequences. A failed reset leaves both views untouched and returns
// ErrResetFailed wrapping the cause.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.remote.Reset(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrResetFailed, err)
	}

	s.mu.Lock()
	s.users = nil
	s.agents = nil
	s.mu.Unlock()

	s.logger.Info("history reset")
	return nil
}

// LoadHistory replaces the live sequences with the remote's view and
// returns copies. An owner with no history gets empty sequences, not an
// error.
func (s *Store) LoadHistory(ctx context.Context) (users, agents []turn.Turn, err error) {
	turns, err := s.remote.Load(ctx, s.owner)
	if err != nil {
		return nil, nil, fmt.Errorf("history: load: %w", err)
	}

	var u, a []turn.Turn
	for _, t := range turns {
		switch t.Source {
		case turn.SourceUser:
			u = append(u, t)
		case turn.SourceAgent:
			a = append(a, t)
		default:
			s.logger.Warn("skipping turn with unknown source", "id", t.ID, "source", t.Source)
		}
	}

	s.mu.Lock()
	s.users = u
	s.agents = a
	s.mu.Unlock()

	s.logger.Debug("history loaded", "users", len(u), "agents", len(a))
	users, agents = s.Turns()
	return users, agents, nil
}

// DeleteTurns removes the given ids from the remote one by one. The loop
// is not atomic: the first failure is reported and earlier deletes stand,
// so callers should re-fetch afterwards.
func (s *Store) DeleteTurns(ctx context.Context, ids []string) error {
	for i, id := range ids {
		if err := s.remote.Delete(ctx, id); err != nil {
			return fmt.Errorf("history: delete %s (%d of %d done): %w", id, i, len(ids), err)
		}
	}
	return nil
}

// Turns returns copies of the live per-source sequences.
func (s *Store) Turns() (users, agents []turn.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := make([]turn.Turn, len(s.users))
	copy(u, s.users)
	a := make([]turn.Turn, len(s.agents))
	copy(a, s.agents)
	return u, a
}

// Len returns how many pairs the live history holds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
