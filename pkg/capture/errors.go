package capture

import "errors"

var (
	// ErrUnavailable indicates the speech-to-text service could not be
	// reached.
	ErrUnavailable = errors.New("capture: recognizer unavailable")

	// ErrAlreadyCapturing indicates Start on a running session.
	ErrAlreadyCapturing = errors.New("capture: already capturing")

	// ErrNotCapturing indicates Stop on a session that is not running.
	ErrNotCapturing = errors.New("capture: not capturing")

	// ErrNotConnected indicates a write to a recognizer that is not
	// started.
	ErrNotConnected = errors.New("capture: recognizer not connected")
)
