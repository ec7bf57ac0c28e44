// Package playback plays synthesized and recorded audio one resource at a
// time.
//
// The Controller owns the single currently-loaded audio resource for a
// session. Switching resources always unloads the previous one before the
// next is loaded, toggle calls pause and resume the loaded resource, and a
// resource that finishes naturally rewinds so the next play starts from the
// beginning. The currently-loaded resource is explicit state inside the
// Controller, never package-level.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// State describes what the controller is doing with the loaded resource.
type State int

const (
	// StateIdle means no resource is loaded.
	StateIdle State = iota

	// StatePlaying means the loaded resource is playing.
	StatePlaying

	// StatePaused means the loaded resource is paused mid-stream.
	StatePaused

	// StateStopped means the loaded resource finished or was stopped and
	// is rewound to the beginning. Playing again restarts from the start.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Controller sequences a playback Engine so that at most one audio
// resource is loaded at a time.
type Controller struct {
	engine Engine
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	current  string
	loop     bool
	finishCh chan struct{}
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a Controller driving the given engine.
func NewController(engine Engine, opts ...ControllerOption) *Controller {
	c := &Controller{
		engine: engine,
		logger: slog.Default(),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "playback")
	engine.SetOnFinish(c.handleFinish)
	return c
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the ref of the loaded resource, empty when idle.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Play loads ref (unloading any different resource first, strictly in that
// order) and plays it. Playing an already-playing ref is a no-op; a paused
// or stopped ref resumes or restarts.
func (c *Controller) Play(ctx context.Context, ref string, loop bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playLocked(ctx, ref, loop)
}

func (c *Controller) playLocked(ctx context.Context, ref string, loop bool) error {
	if c.current != "" && c.current != ref {
		// Unload must complete before the next load begins.
		if err := c.engine.Unload(); err != nil {
			return fmt.Errorf("playback: unload %s: %w", c.current, err)
		}
		c.current = ""
		c.state = StateIdle
	}

	if c.current == "" {
		if err := c.engine.Load(ctx, ref); err != nil {
			return fmt.Errorf("playback: load %s: %w", ref, err)
		}
		c.current = ref
		c.state = StateStopped
	}

	c.loop = loop
	if c.state == StatePlaying {
		return nil
	}
	if err := c.engine.Play(ctx); err != nil {
		return fmt.Errorf("playback: play %s: %w", ref, err)
	}
	c.state = StatePlaying
	c.logger.Debug("playing", "ref", ref, "loop", loop)
	return nil
}

// Toggle pauses ref if it is playing, resumes it if it is paused, and
// loads and plays it if it is not the loaded resource.
func (c *Controller) Toggle(ctx context.Context, ref string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != ref {
		return c.playLocked(ctx, ref, false)
	}

	switch c.state {
	case StatePlaying:
		if err := c.engine.Pause(); err != nil {
			return fmt.Errorf("playback: pause %s: %w", ref, err)
		}
		c.state = StatePaused
	case StatePaused, StateStopped:
		if err := c.engine.Play(ctx); err != nil {
			return fmt.Errorf("playback: resume %s: %w", ref, err)
		}
		c.state = StatePlaying
	}
	return nil
}

// PlayAndWait plays ref and blocks until it finishes naturally or ctx is
// done. The pipeline uses this to hold the turn until the reply audio has
// been heard.
func (c *Controller) PlayAndWait(ctx context.Context, ref string) error {
	done := make(chan struct{})

	c.mu.Lock()
	c.finishCh = done
	if err := c.playLocked(ctx, ref, false); err != nil {
		c.finishCh = nil
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleFinish runs when the engine reports natural completion. The engine
// has already rewound; looping resources replay, everything else becomes
// stopped (not paused) so the next play starts from the beginning.
func (c *Controller) handleFinish() {
	c.mu.Lock()

	if c.loop && c.current != "" {
		if err := c.engine.Play(context.Background()); err != nil {
			c.logger.Warn("loop replay failed", "ref", c.current, "error", err)
			c.state = StateStopped
		}
		c.mu.Unlock()
		return
	}

	c.state = StateStopped
	ch := c.finishCh
	c.finishCh = nil
	c.mu.Unlock()

	if ch != nil {
		close(ch)
	}
}

// Close unloads any loaded resource.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == "" {
		return nil
	}
	err := c.engine.Unload()
	c.current = ""
	c.state = StateIdle
	return err
}
