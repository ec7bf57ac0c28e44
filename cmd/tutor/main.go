// Push-to-talk console client for the tutor pipeline. Hold a turn with
// Enter, speak, press Enter again to release; the reply plays back and the
// exchange lands in history.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/guffawlabs/go-tutor/internal/config"
	"github.com/guffawlabs/go-tutor/internal/log"
	"github.com/guffawlabs/go-tutor/pkg/audioio"
	"github.com/guffawlabs/go-tutor/pkg/backend"
	"github.com/guffawlabs/go-tutor/pkg/capture"
	"github.com/guffawlabs/go-tutor/pkg/exchange"
	"github.com/guffawlabs/go-tutor/pkg/history"
	"github.com/guffawlabs/go-tutor/pkg/playback"
	"github.com/guffawlabs/go-tutor/pkg/turn"
)

const defaultBackendURL = "http://localhost:8090"

func main() {
	godotenv.Load()
	log.Init(config.LogLevel())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error("tutor exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	owner := config.OwnerIDRequired()
	backendURL := config.BackendURL(defaultBackendURL)
	audioDir := config.AudioDir()

	client, err := backend.New(backend.WithBaseURL(backendURL))
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	store, closeRemote, err := newStore(ctx, client, owner)
	if err != nil {
		return err
	}
	defer closeRemote()

	// Pick up where the last session left off.
	users, agents, err := store.LoadHistory(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	log.Info("history loaded", "pairs", len(users))
	printHistory(turn.Combine(users, agents))

	micCfg := audioio.Config{Backend: audioio.BackendPortAudio, SampleRate: 16000, Channels: 1}
	mic, err := audioio.NewPortAudioSource(micCfg)
	if err != nil {
		return fmt.Errorf("microphone: %w", err)
	}
	defer mic.Close()

	speakerCfg := audioio.Config{Backend: audioio.BackendPortAudio, SampleRate: 48000, Channels: 1}
	speaker, err := audioio.NewPortAudioSink(speakerCfg)
	if err != nil {
		return fmt.Errorf("speaker: %w", err)
	}
	defer speaker.Close()

	recognizer := capture.NewWSRecognizer(config.RecognizerURL(backendURL))
	session := capture.NewSession(mic, recognizer, capture.NewFileRecorder(audioDir))

	player := playback.NewController(playback.NewDeviceEngine(speaker, log.L()))
	defer player.Close()

	o := exchange.New(session, client, player, store, owner,
		exchange.WithAudioDir(audioDir))

	return repl(ctx, o, store, player)
}

// newStore picks the durable remote: Firestore when a project is
// configured, otherwise the backend's REST message API.
func newStore(ctx context.Context, client *backend.Client, owner string) (*history.Store, func(), error) {
	if project := config.FirestoreProject(); project != "" {
		remote, err := history.NewFirestoreRemote(ctx, project, owner, log.L())
		if err != nil {
			return nil, nil, fmt.Errorf("firestore remote: %w", err)
		}
		log.Info("using firestore history", "project", project)
		return history.NewStore(remote, owner), func() { remote.Close() }, nil
	}

	remote := history.NewBackendRemote(client, log.L())
	return history.NewStore(remote, owner), func() {}, nil
}

func repl(ctx context.Context, o *exchange.Orchestrator, store *history.Store, player *playback.Controller) error {
	fmt.Println("Enter = hold/release a turn, /search <q>, /play <ref>, /reset, /history, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	capturing := false

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			if !capturing {
				if err := o.Press(ctx); err != nil {
					fmt.Println("!", err)
					continue
				}
				capturing = true
				fmt.Println("listening... press Enter to finish")
				continue
			}
			capturing = false
			if err := o.Release(ctx); err != nil {
				fmt.Println("!", err)
			}

		case line == "/quit":
			return nil

		case line == "/reset":
			if err := o.Reset(ctx); err != nil {
				fmt.Println("!", err)
				continue
			}
			fmt.Println("conversation cleared")

		case line == "/history":
			users, agents := store.Turns()
			printHistory(turn.Combine(users, agents))

		case strings.HasPrefix(line, "/search "):
			query := strings.TrimSpace(strings.TrimPrefix(line, "/search "))
			users, agents := store.Turns()
			printHistory(turn.FilterPaired(turn.Combine(users, agents), query))

		case strings.HasPrefix(line, "/play "):
			ref := strings.TrimSpace(strings.TrimPrefix(line, "/play "))
			if err := player.Toggle(ctx, ref); err != nil {
				fmt.Println("!", err)
			}

		default:
			fmt.Println("unknown command:", line)
		}
	}
}

func printHistory(turns []turn.Turn) {
	for _, t := range turns {
		marker := "you"
		if t.Source == turn.SourceAgent {
			marker = "tutor"
		}
		fmt.Printf("[%s] %-5s %s\n", t.CreatedAt.Format("15:04:05"), marker, t.Text)
	}
	if len(turns) == 0 {
		fmt.Println("(no turns)")
	}
}
