package history

import "errors"

var (
	// ErrResetFailed indicates the remote reset did not complete; local
	// state was left untouched.
	ErrResetFailed = errors.New("history: reset failed")

	// ErrUnpaired indicates an append whose user and agent turns do not
	// share a pairing id.
	ErrUnpaired = errors.New("history: turns are not a pair")
)
