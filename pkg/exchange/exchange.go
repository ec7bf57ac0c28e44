// Package exchange sequences one conversation turn end to end.
//
// A turn starts when the learner presses to talk and ends when the paired
// user/agent exchange has been committed to history: capture stops, the
// transcript is synthesized into reply audio, the reply plays to the end,
// the agent's text is fetched, and the pair is appended. An empty
// transcript takes the short path instead: a fixed fallback prompt is
// synthesized and played, nothing is fetched and nothing is appended.
// Only one turn can be in flight at a time.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guffawlabs/go-tutor/pkg/backend"
	"github.com/guffawlabs/go-tutor/pkg/capture"
	"github.com/guffawlabs/go-tutor/pkg/turn"
)

// defaultSaveAudio stores reply audio the same way the backend client
// does for synthesized speech.
var defaultSaveAudio SaveAudioFunc = backend.SaveAudio

// fallbackPrompt is spoken when recognition produced no usable speech.
const fallbackPrompt = "Sorry, I didn't catch that. Could you say it again?"

// State is the orchestrator's position in the turn pipeline.
type State int

const (
	// StateIdle means no turn is in flight.
	StateIdle State = iota

	// StateCapturing means the learner is being recorded.
	StateCapturing

	// StateSynthesizing means reply audio is being generated.
	StateSynthesizing

	// StatePlaying means the reply audio is playing.
	StatePlaying

	// StateAwaitingReply means the agent's text is being fetched.
	StateAwaitingReply

	// StateCommitting means the pair is being appended to history.
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateSynthesizing:
		return "synthesizing"
	case StatePlaying:
		return "playing"
	case StateAwaitingReply:
		return "awaiting_reply"
	case StateCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

// Capturer is the capture surface the orchestrator drives.
type Capturer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (capture.Result, error)
	Destroy() error
}

// Synthesizer produces reply audio and the agent's reply text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	AgentReply(ctx context.Context) (string, error)
}

// Player plays one audio resource to completion.
type Player interface {
	PlayAndWait(ctx context.Context, ref string) error
}

// History receives committed pairs and handles resets.
type History interface {
	AppendPair(ctx context.Context, user, agent turn.Turn) error
	Reset(ctx context.Context) error
}

// SaveAudioFunc persists synthesized audio under a directory and returns
// its ref.
type SaveAudioFunc func(audio []byte, dir string) (string, error)

// Orchestrator runs the turn pipeline.
type Orchestrator struct {
	capturer  Capturer
	synth     Synthesizer
	player    Player
	history   History
	saveAudio SaveAudioFunc
	audioDir  string
	owner     string
	now       func() time.Time
	logger    *slog.Logger

	mu    sync.Mutex
	state State
	gen   int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithAudioDir sets where reply audio files are stored.
func WithAudioDir(dir string) Option {
	return func(o *Orchestrator) {
		o.audioDir = dir
	}
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithSaveAudio overrides how synthesized audio is persisted, for tests.
func WithSaveAudio(fn SaveAudioFunc) Option {
	return func(o *Orchestrator) {
		o.saveAudio = fn
	}
}

// New creates an Orchestrator for one owner's session.
func New(capturer Capturer, synth Synthesizer, player Player, history History, owner string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		capturer: capturer,
		synth:    synth,
		player:   player,
		history:  history,
		owner:    owner,
		audioDir: ".",
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "exchange")
	return o
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Press begins capturing the learner's turn. A press while a turn is in
// flight is rejected with ErrTurnInFlight.
func (o *Orchestrator) Press(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTurnInFlight, o.state)
	}
	o.state = StateCapturing
	o.mu.Unlock()

	if err := o.capturer.Start(ctx); err != nil {
		o.setState(StateIdle)
		o.logger.Warn("capture unavailable", "error", err)
		return fmt.Errorf("exchange: start capture: %w", err)
	}
	o.logger.Debug("turn started")
	return nil
}

// Release ends the capture and runs the rest of the turn to completion.
// It blocks until the reply audio has played and the pair is committed, or
// until the fallback prompt has played for an empty transcript. The
// orchestrator is Idle again when Release returns, whatever the outcome.
func (o *Orchestrator) Release(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateCapturing {
		o.mu.Unlock()
		return ErrNotCapturing
	}
	gen := o.gen
	o.mu.Unlock()

	defer o.setState(StateIdle)

	result, err := o.capturer.Stop(ctx)
	if err != nil {
		return fmt.Errorf("exchange: stop capture: %w", err)
	}

	if result.Transcript == "" {
		return o.runFallback(ctx)
	}
	return o.runTurn(ctx, gen, result)
}

// runFallback speaks the retry prompt. No agent text is fetched and
// nothing reaches history, so recognition misses leave no trace in the
// conversation.
func (o *Orchestrator) runFallback(ctx context.Context) error {
	o.logger.Info("empty transcript, speaking fallback prompt")

	o.setState(StateSynthesizing)
	ref, err := o.synthesizeToFile(ctx, fallbackPrompt)
	if err != nil {
		return err
	}

	o.setState(StatePlaying)
	if err := o.player.PlayAndWait(ctx, ref); err != nil {
		return fmt.Errorf("exchange: play fallback: %w", err)
	}
	return nil
}

// runTurn finishes a genuine turn: synthesize, play, fetch the reply
// text, commit the pair, and tear down the recognition engine.
func (o *Orchestrator) runTurn(ctx context.Context, gen int, result capture.Result) error {
	o.setState(StateSynthesizing)
	replyRef, err := o.synthesizeToFile(ctx, result.Transcript)
	if err != nil {
		return err
	}

	o.setState(StatePlaying)
	if err := o.player.PlayAndWait(ctx, replyRef); err != nil {
		return fmt.Errorf("exchange: play reply: %w", err)
	}

	o.setState(StateAwaitingReply)
	replyText, err := o.synth.AgentReply(ctx)
	if err != nil {
		// The engine is not reusable after a half-finished turn.
		if destroyErr := o.capturer.Destroy(); destroyErr != nil {
			o.logger.Warn("engine teardown failed", "error", destroyErr)
		}
		return fmt.Errorf("exchange: fetch reply: %w", err)
	}

	o.setState(StateCommitting)
	o.mu.Lock()
	stale := o.gen != gen
	o.mu.Unlock()
	if stale {
		// A reset happened mid-turn; committing now would resurrect
		// cleared history.
		o.logger.Info("discarding turn that crossed a reset")
	} else {
		user, agent := turn.NewPair(o.owner, result.Transcript, result.RecordingRef, replyText, replyRef, o.now())
		if err := o.history.AppendPair(ctx, user, agent); err != nil {
			if destroyErr := o.capturer.Destroy(); destroyErr != nil {
				o.logger.Warn("engine teardown failed", "error", destroyErr)
			}
			return fmt.Errorf("exchange: commit pair: %w", err)
		}
		o.logger.Info("turn committed", "id", user.ID)
	}

	if err := o.capturer.Destroy(); err != nil {
		o.logger.Warn("engine teardown failed", "error", err)
	}
	return nil
}

func (o *Orchestrator) synthesizeToFile(ctx context.Context, text string) (string, error) {
	audio, err := o.synth.Synthesize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("exchange: synthesize: %w", err)
	}

	save := o.saveAudio
	if save == nil {
		save = defaultSaveAudio
	}
	ref, err := save(audio, o.audioDir)
	if err != nil {
		return "", fmt.Errorf("exchange: save reply audio: %w", err)
	}
	return ref, nil
}

// Reset clears the conversation history and invalidates any in-flight
// turn so it cannot commit a pair into the freshly cleared history.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if err := o.history.Reset(ctx); err != nil {
		return fmt.Errorf("exchange: %w", err)
	}

	o.mu.Lock()
	o.gen++
	o.mu.Unlock()
	o.logger.Info("conversation reset")
	return nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}
