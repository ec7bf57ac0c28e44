// Package turn defines the conversation data model for go-tutor.
//
// A Turn is one utterance in a tutoring conversation, produced either by
// the user or by the agent. A completed exchange is a pair of turns that
// share one pairing ID: the user turn and the agent reply it triggered.
// Turns are append-only while part of a live session; deletion happens only
// as an explicit bulk operation against the durable store.
package turn

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies who produced a turn.
type Source string

const (
	// SourceUser marks a turn spoken by the user.
	SourceUser Source = "user"

	// SourceAgent marks a turn spoken by the agent.
	SourceAgent Source = "agent"
)

// Turn is one utterance in the conversation.
type Turn struct {
	// ID is the pairing identifier. A user turn and the agent turn that
	// answers it carry the same ID. Stable across merge, search and delete.
	ID string `json:"id"`

	// Source is who produced the turn.
	Source Source `json:"source"`

	// AudioRef is an opaque handle to a playable audio resource,
	// typically a local file path. May be empty.
	AudioRef string `json:"audioRef,omitempty"`

	// Text is the transcript. May be empty.
	Text string `json:"text"`

	// CreatedAt is when the exchange completed. Both turns of a pair
	// share the same timestamp.
	CreatedAt time.Time `json:"createdAt"`

	// OwnerID is the account the conversation belongs to.
	OwnerID string `json:"ownerId"`
}

// NewPairID returns a fresh pairing identifier.
func NewPairID() string {
	return uuid.NewString()
}

// NewPair builds the user/agent turn pair for one completed exchange.
// Both turns share a pairing ID and a timestamp.
func NewPair(ownerID, userText, userAudio, agentText, agentAudio string, at time.Time) (Turn, Turn) {
	id := NewPairID()
	user := Turn{
		ID:        id,
		Source:    SourceUser,
		AudioRef:  userAudio,
		Text:      userText,
		CreatedAt: at,
		OwnerID:   ownerID,
	}
	agent := Turn{
		ID:        id,
		Source:    SourceAgent,
		AudioRef:  agentAudio,
		Text:      agentText,
		CreatedAt: at,
		OwnerID:   ownerID,
	}
	return user, agent
}
