package backend

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/guffawlabs/go-tutor/internal/httpc"
)

// Config holds backend client configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// BaseURL is the backend service root, e.g. "https://tutor.example.com".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeouts
	Timeout time.Duration

	// Retry configuration for 429/5xx and transport failures.
	MaxRetries int
	RetryDelay time.Duration

	// HTTPClient overrides the shared transport. Mostly for tests.
	HTTPClient *http.Client

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the backend client.
type Option func(*Config)

// WithBaseURL sets the backend service root URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithAPIKey sets the bearer token for authenticated backends.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
		c.HTTPClient = httpc.NewClient(timeout)
	}
}

// WithRetry configures retry behavior for failed requests.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithHTTPClient overrides the HTTP client used for all requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithLogger sets the structured logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:    httpc.DefaultTimeout,
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		HTTPClient: httpc.Client,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	return nil
}
