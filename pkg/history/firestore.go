package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/guffawlabs/go-tutor/pkg/turn"
)

// Firestore collection names, one per turn source.
const (
	userCollection  = "userMessagesEnglishTutor"
	agentCollection = "aiMessagesEnglishTutor"
)

const datastoreScope = "https://www.googleapis.com/auth/datastore"

// turnDoc is the Firestore document shape for one turn.
type turnDoc struct {
	ID        string    `firestore:"id"`
	Source    string    `firestore:"source"`
	AudioRef  string    `firestore:"audioRef"`
	Text      string    `firestore:"text"`
	CreatedAt time.Time `firestore:"createdAt"`
	OwnerID   string    `firestore:"ownerId"`
}

func toDoc(t turn.Turn) turnDoc {
	return turnDoc{
		ID:        t.ID,
		Source:    string(t.Source),
		AudioRef:  t.AudioRef,
		Text:      t.Text,
		CreatedAt: t.CreatedAt,
		OwnerID:   t.OwnerID,
	}
}

func (d turnDoc) toTurn() turn.Turn {
	return turn.Turn{
		ID:        d.ID,
		Source:    turn.Source(d.Source),
		AudioRef:  d.AudioRef,
		Text:      d.Text,
		CreatedAt: d.CreatedAt,
		OwnerID:   d.OwnerID,
	}
}

// FirestoreRemote persists turn pairs to Cloud Firestore, one collection
// per source, documents keyed by the pairing id and filtered by owner.
type FirestoreRemote struct {
	client *firestore.Client
	owner  string
	logger *slog.Logger
}

var _ Remote = (*FirestoreRemote)(nil)

// NewFirestoreRemote connects to the Firestore database of the given
// project using application default credentials. Extra client options
// (emulator endpoints, explicit token sources) can be appended.
func NewFirestoreRemote(ctx context.Context, projectID, owner string, logger *slog.Logger, opts ...option.ClientOption) (*FirestoreRemote, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if len(opts) == 0 {
		ts, err := google.DefaultTokenSource(ctx, datastoreScope)
		if err != nil {
			return nil, fmt.Errorf("history: firestore credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("history: firestore client: %w", err)
	}

	return &FirestoreRemote{
		client: client,
		owner:  owner,
		logger: logger.With("component", "history.firestore", "project", projectID),
	}, nil
}

// AppendPair writes both turns in one transaction so the remote never
// holds half a pair.
func (f *FirestoreRemote) AppendPair(ctx context.Context, user, agent turn.Turn) error {
	userRef := f.client.Collection(userCollection).Doc(user.ID)
	agentRef := f.client.Collection(agentCollection).Doc(agent.ID)

	err := f.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(userRef, toDoc(user)); err != nil {
			return err
		}
		return tx.Set(agentRef, toDoc(agent))
	})
	if err != nil {
		return fmt.Errorf("firestore commit pair %s: %w", user.ID, err)
	}
	return nil
}

// Load fetches every turn the owner has in both collections.
func (f *FirestoreRemote) Load(ctx context.Context, ownerID string) ([]turn.Turn, error) {
	var out []turn.Turn
	for _, col := range []string{userCollection, agentCollection} {
		iter := f.client.Collection(col).Where("ownerId", "==", ownerID).Documents(ctx)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("firestore load %s: %w", col, err)
			}

			var doc turnDoc
			if err := snap.DataTo(&doc); err != nil {
				f.logger.Warn("skipping malformed document", "collection", col, "doc", snap.Ref.ID, "error", err)
				continue
			}
			out = append(out, doc.toTurn())
		}
	}
	return out, nil
}

// Reset deletes every document the owner has. The first failed delete
// aborts so the caller keeps its local state.
func (f *FirestoreRemote) Reset(ctx context.Context) error {
	for _, col := range []string{userCollection, agentCollection} {
		iter := f.client.Collection(col).Where("ownerId", "==", f.owner).Documents(ctx)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return fmt.Errorf("firestore reset %s: %w", col, err)
			}
			if _, err := snap.Ref.Delete(ctx); err != nil {
				return fmt.Errorf("firestore reset %s/%s: %w", col, snap.Ref.ID, err)
			}
		}
	}
	f.logger.Info("firestore history cleared", "owner", f.owner)
	return nil
}

// Delete removes the pair with the given id from both collections.
// Deleting an absent document is a no-op in Firestore.
func (f *FirestoreRemote) Delete(ctx context.Context, id string) error {
	if _, err := f.client.Collection(userCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete %s/%s: %w", userCollection, id, err)
	}
	if _, err := f.client.Collection(agentCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete %s/%s: %w", agentCollection, id, err)
	}
	return nil
}

// Close releases the underlying client.
func (f *FirestoreRemote) Close() error {
	return f.client.Close()
}
