// Package config provides configuration helpers for go-tutor commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Default backend configuration.
const (
	DefaultBackendPort = "8080"
	DefaultAudioDir    = "audio"
)

// BackendURL returns the tutor backend base URL from TUTOR_BACKEND_URL.
// Falls back to the provided default if not set.
func BackendURL(defaultURL string) string {
	if u := os.Getenv("TUTOR_BACKEND_URL"); u != "" {
		return u
	}
	return defaultURL
}

// OwnerIDRequired returns the authenticated owner UID from TUTOR_OWNER_ID.
// Exits if not set: the pipeline cannot persist history without an owner.
func OwnerIDRequired() string {
	owner := os.Getenv("TUTOR_OWNER_ID")
	if owner == "" {
		fmt.Fprintln(os.Stderr, "Error: TUTOR_OWNER_ID environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: TUTOR_OWNER_ID=<uid> go run ./cmd/tutor")
		os.Exit(1)
	}
	return owner
}

// RecognizerURL returns the speech recognizer websocket URL from
// TUTOR_RECOGNIZER_URL or derives one from the backend base URL.
func RecognizerURL(backendURL string) string {
	if u := os.Getenv("TUTOR_RECOGNIZER_URL"); u != "" {
		return u
	}
	return "ws" + backendURL[len("http"):] + "/listen"
}

// AudioDir returns the local directory for saved audio from TUTOR_AUDIO_DIR.
func AudioDir() string {
	if dir := os.Getenv("TUTOR_AUDIO_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), DefaultAudioDir)
}

// FirestoreProject returns the Firestore project ID from TUTOR_FIRESTORE_PROJECT.
// Empty means the Firestore-backed history store is disabled.
func FirestoreProject() string {
	return os.Getenv("TUTOR_FIRESTORE_PROJECT")
}

// LogLevel returns the log level from TUTOR_LOG_LEVEL or "info".
func LogLevel() string {
	if lvl := os.Getenv("TUTOR_LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}
