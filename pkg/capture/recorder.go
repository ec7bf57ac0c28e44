package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/guffawlabs/go-tutor/pkg/audioio"
)

// FileRecorder writes captured audio to a raw PCM file so the learner can
// replay their own turn.
type FileRecorder struct {
	dir string

	mu   sync.Mutex
	file *os.File
	path string
}

var _ Recorder = (*FileRecorder)(nil)

// NewFileRecorder creates a recorder storing files under dir.
func NewFileRecorder(dir string) *FileRecorder {
	return &FileRecorder{dir: dir}
}

// Start opens a fresh recording file.
func (f *FileRecorder) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file != nil {
		return ErrAlreadyCapturing
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("capture: recording dir: %w", err)
	}

	path := filepath.Join(f.dir, fmt.Sprintf("turn-%s.pcm", uuid.NewString()))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("capture: create recording: %w", err)
	}
	f.file = file
	f.path = path
	return nil
}

// Write appends one chunk to the recording.
func (f *FileRecorder) Write(chunk audioio.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return ErrNotCapturing
	}
	if _, err := f.file.Write(chunk.Bytes()); err != nil {
		return fmt.Errorf("capture: write recording: %w", err)
	}
	return nil
}

// Stop closes the file and returns its path as the recording ref.
func (f *FileRecorder) Stop() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return "", ErrNotCapturing
	}
	err := f.file.Close()
	path := f.path
	f.file = nil
	f.path = ""
	if err != nil {
		return "", fmt.Errorf("capture: close recording: %w", err)
	}
	return path, nil
}
