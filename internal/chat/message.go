package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrilink/agrichat/internal/identity"
)

// Message is one chat utterance. Messages come from three places: the
// history endpoint, live broadcasts, and optimistic local sends awaiting
// their broadcast. JSON tags match the service wire format.
type Message struct {
	// ID is assigned by the service once persisted. Optimistic messages
	// carry a locally generated placeholder until reconciled.
	ID        string    `json:"_id"`
	ChannelID string    `json:"chatId"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitempty"`

	// ClientTag is the per-send correlation id. The sending client sets it
	// and matches it against its own echoed broadcast; servers that do not
	// round-trip the tag fall back to sender+content matching.
	ClientTag string `json:"clientTag,omitempty"`
}

// Conversation is the client-side record of a counterpart the current
// user has an open channel with. The Directory owns the set; the Session
// only reads the selected entry.
type Conversation struct {
	Counterpart identity.User
}

// newOptimisticMessage builds the local placeholder appended before the
// service confirms a send.
func newOptimisticMessage(channelID string, sender, receiver identity.User, content string) Message {
	return Message{
		ID:        "local-" + uuid.New().String(),
		ChannelID: channelID,
		Sender:    sender.ID,
		Receiver:  receiver.ID,
		Content:   content,
		CreatedAt: time.Now(),
		ClientTag: uuid.New().String(),
	}
}
