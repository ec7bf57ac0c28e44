package exchange

import "errors"

var (
	// ErrTurnInFlight indicates a press while a turn is already running.
	ErrTurnInFlight = errors.New("exchange: turn already in flight")

	// ErrNotCapturing indicates a release without a matching press.
	ErrNotCapturing = errors.New("exchange: not capturing")
)
