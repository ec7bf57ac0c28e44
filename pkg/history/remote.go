package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guffawlabs/go-tutor/pkg/backend"
	"github.com/guffawlabs/go-tutor/pkg/turn"
)

// Remote is the durable side of the conversation history.
type Remote interface {
	// AppendPair persists both turns of a pair, or neither.
	AppendPair(ctx context.Context, user, agent turn.Turn) error

	// Load fetches every persisted turn for an owner. Unknown owners
	// get an empty result, not an error.
	Load(ctx context.Context, ownerID string) ([]turn.Turn, error)

	// Reset clears all persisted history.
	Reset(ctx context.Context) error

	// Delete removes one persisted turn pair by id.
	Delete(ctx context.Context, id string) error
}

// backendRemote persists through the tutor backend's REST message API.
// The API has no multi-document transaction, so AppendPair compensates: if
// the agent upload fails after the user upload succeeded, the user turn is
// deleted again.
type backendRemote struct {
	client *backend.Client
	logger *slog.Logger
}

var _ Remote = (*backendRemote)(nil)

// NewBackendRemote creates a Remote backed by the tutor backend.
func NewBackendRemote(client *backend.Client, logger *slog.Logger) Remote {
	if logger == nil {
		logger = slog.Default()
	}
	return &backendRemote{
		client: client,
		logger: logger.With("component", "history.remote"),
	}
}

func (r *backendRemote) AppendPair(ctx context.Context, user, agent turn.Turn) error {
	if err := r.client.UploadTurn(ctx, user); err != nil {
		return fmt.Errorf("upload user turn: %w", err)
	}

	if err := r.client.UploadTurn(ctx, agent); err != nil {
		// Roll the pair back so the remote never holds half of it.
		if delErr := r.client.DeleteTurn(ctx, user.ID); delErr != nil {
			r.logger.Error("compensating delete failed, remote holds a half pair",
				"id", user.ID, "error", delErr)
			return errors.Join(
				fmt.Errorf("upload agent turn: %w", err),
				fmt.Errorf("compensating delete: %w", delErr),
			)
		}
		return fmt.Errorf("upload agent turn: %w", err)
	}
	return nil
}

func (r *backendRemote) Load(ctx context.Context, ownerID string) ([]turn.Turn, error) {
	return r.client.ListTurns(ctx, ownerID)
}

func (r *backendRemote) Reset(ctx context.Context) error {
	return r.client.ResetConversation(ctx)
}

func (r *backendRemote) Delete(ctx context.Context, id string) error {
	return r.client.DeleteTurn(ctx, id)
}
