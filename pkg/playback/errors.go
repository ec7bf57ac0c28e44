package playback

import "errors"

var (
	// ErrNoResource indicates an engine operation without a loaded resource.
	ErrNoResource = errors.New("playback: no audio loaded")

	// ErrUnsupportedFormat indicates an audio file the decoders cannot read.
	ErrUnsupportedFormat = errors.New("playback: unsupported audio format")
)
