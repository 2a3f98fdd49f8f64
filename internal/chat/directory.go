package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/agrilink/agrichat/internal/identity"
)

// DirectoryAPI is the slice of the marketplace API the directory needs.
type DirectoryAPI interface {
	ChatList(ctx context.Context) ([]string, error)
	Profile(ctx context.Context, id string) (identity.User, error)
	Users(ctx context.Context) ([]identity.User, error)
	AddConversation(ctx context.Context, counterpartID string) error
}

// StaleListError reports a partial StartConversation failure: the service
// accepted the new conversation but the follow-up list refresh failed, so
// the cached directory no longer reflects server state.
type StaleListError struct {
	Counterpart identity.User
	Err         error
}

func (e *StaleListError) Error() string {
	return fmt.Sprintf("conversation with %s added but list refresh failed: %v", e.Counterpart.ID, e.Err)
}

func (e *StaleListError) Unwrap() error { return e.Err }

// Directory owns the set of the current user's conversations. The cache
// is only ever replaced wholesale on a successful List; a failed refresh
// keeps the previous cache rather than presenting an empty directory.
type Directory struct {
	api  DirectoryAPI
	self identity.User

	mu            sync.Mutex
	conversations []Conversation
}

// NewDirectory creates a directory for the given user.
func NewDirectory(api DirectoryAPI, self identity.User) *Directory {
	return &Directory{api: api, self: self}
}

// List fetches the conversation list and resolves each counterpart id to
// a full user record, preserving service order. Duplicate ids from the
// service collapse into one entry.
func (d *Directory) List(ctx context.Context) ([]Conversation, error) {
	ids, err := d.api.ChatList(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	seen := make(map[string]struct{}, len(ids))
	conversations := make([]Conversation, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		counterpart, err := d.api.Profile(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve counterpart %s: %w", id, err)
		}
		conversations = append(conversations, Conversation{Counterpart: counterpart})
	}

	d.mu.Lock()
	d.conversations = conversations
	d.mu.Unlock()

	return d.Conversations(), nil
}

// Conversations returns a copy of the cached directory from the last
// successful List.
func (d *Directory) Conversations() []Conversation {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Conversation, len(d.conversations))
	copy(out, d.conversations)
	return out
}

// StartConversation registers a conversation with the counterpart and
// refreshes the directory so the new entry shows up. A refresh failure
// after a successful registration returns *StaleListError so callers can
// tell "nothing happened" from "it happened but the list is stale".
func (d *Directory) StartConversation(ctx context.Context, counterpart identity.User) error {
	if err := d.api.AddConversation(ctx, counterpart.ID); err != nil {
		return fmt.Errorf("start conversation with %s: %w", counterpart.ID, err)
	}

	if _, err := d.List(ctx); err != nil {
		return &StaleListError{Counterpart: counterpart, Err: err}
	}
	return nil
}

// Candidates returns the users the current user could start a new
// conversation with: opposite role only, never the current user, never a
// counterpart already in the directory.
func (d *Directory) Candidates(ctx context.Context) ([]identity.User, error) {
	users, err := d.api.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	d.mu.Lock()
	existing := make(map[string]struct{}, len(d.conversations))
	for _, c := range d.conversations {
		existing[c.Counterpart.ID] = struct{}{}
	}
	d.mu.Unlock()

	candidates := make([]identity.User, 0, len(users))
	for _, u := range users {
		if u.ID == d.self.ID {
			continue
		}
		if u.Role == d.self.Role {
			continue
		}
		if _, ok := existing[u.ID]; ok {
			continue
		}
		candidates = append(candidates, u)
	}
	return candidates, nil
}
