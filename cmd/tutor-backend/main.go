// Local development backend for the tutor client. Implements the wire
// surface the pipeline talks to so everything runs on one machine.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/guffawlabs/go-tutor/internal/config"
	"github.com/guffawlabs/go-tutor/internal/log"
)

func main() {
	godotenv.Load()
	log.Init(config.LogLevel())

	port := os.Getenv("TUTOR_BACKEND_PORT")
	if port == "" {
		port = "8090"
	}

	if err := NewServer().Start(port); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
