package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agrilink/agrichat/internal/identity"
)

// ErrNoConversation is returned when Send is called with no conversation
// selected. The UI disables the composer in that state, but the core
// still guards it.
var ErrNoConversation = errors.New("no active conversation")

// State is the session lifecycle: Idle until a conversation is selected,
// Loading while its history fetch is in flight, Ready once the feed holds
// the authoritative history and live updates are flowing.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is the slice of the channel transport the session needs.
type Transport interface {
	Join(channelID string) error
	Send(msg Message) error
}

// HistoryFetcher fetches the authoritative message history for a channel.
type HistoryFetcher interface {
	History(ctx context.Context, channelID string) ([]Message, error)
}

// Snapshot is a consistent view of the session for renderers.
type Snapshot struct {
	State        State
	Conversation Conversation
	ChannelID    string
	Messages     []Message
	// Err holds the most recent asynchronous failure (history fetch),
	// cleared on the next selection.
	Err error
}

// pendingSend tracks an optimistic message awaiting its broadcast echo.
type pendingSend struct {
	tag     string
	content string
	localID string
}

// Session holds the single active conversation: its channel, its ordered
// feed, and the optimistic sends not yet confirmed. Exactly one
// conversation is active at a time; selecting another discards the feed.
//
// The transport's read loop and the UI goroutine both enter the session,
// so all state lives behind one mutex.
type Session struct {
	self      identity.User
	transport Transport
	history   HistoryFetcher
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	conv      Conversation
	channelID string
	epoch     uint64
	feed      []Message
	pending   []pendingSend
	lastErr   error
	closed    bool

	updates chan struct{}
}

// NewSession creates an idle session for the current user.
func NewSession(self identity.User, t Transport, h HistoryFetcher, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		self:      self,
		transport: t,
		history:   h,
		logger:    logger,
		updates:   make(chan struct{}, 1),
	}
}

// Updates signals feed or state changes, coalesced: a slow consumer sees
// at least one pending signal and re-reads Snapshot. Closed on Close.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// Snapshot returns a copy of the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]Message, len(s.feed))
	copy(msgs, s.feed)
	return Snapshot{
		State:        s.state,
		Conversation: s.conv,
		ChannelID:    s.channelID,
		Messages:     msgs,
		Err:          s.lastErr,
	}
}

// Select makes the given conversation active: the previous feed is
// discarded, the channel is joined, and a history fetch starts. A fetch
// still in flight for a previous selection is superseded; its result is
// dropped when it lands, never applied over the newer selection.
func (s *Session) Select(ctx context.Context, conv Conversation) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	s.epoch++
	epoch := s.epoch
	s.state = StateLoading
	s.conv = conv
	s.channelID = ChannelID(s.self.ID, conv.Counterpart.ID)
	channelID := s.channelID
	s.feed = nil
	s.pending = nil
	s.lastErr = nil
	s.notifyLocked()
	s.mu.Unlock()

	if err := s.transport.Join(channelID); err != nil {
		return fmt.Errorf("join channel %s: %w", channelID, err)
	}

	go s.fetchHistory(ctx, epoch, channelID)
	return nil
}

// fetchHistory loads the channel history and applies it only if the
// selection that requested it is still current.
func (s *Session) fetchHistory(ctx context.Context, epoch uint64, channelID string) {
	msgs, err := s.history.History(ctx, channelID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || epoch != s.epoch {
		s.logger.Debug("drop stale history result", "channel", channelID)
		return
	}

	if err != nil {
		s.lastErr = err
		s.state = StateReady
		s.notifyLocked()
		return
	}

	// Server order is authoritative; whatever trickled in while loading
	// is replaced by it.
	s.feed = append([]Message(nil), msgs...)
	s.state = StateReady
	s.notifyLocked()
}

// RetryHistory refetches the active channel's history after a failed
// load. No-op when nothing is selected.
func (s *Session) RetryHistory(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateLoading
	s.lastErr = nil
	epoch := s.epoch
	channelID := s.channelID
	s.notifyLocked()
	s.mu.Unlock()

	go s.fetchHistory(ctx, epoch, channelID)
}

// Send appends exactly one optimistic message and hands it to the
// transport. The optimistic entry stays even when the transport write
// fails; the error is returned so the UI can say so.
func (s *Session) Send(content string) error {
	s.mu.Lock()
	if s.closed || s.state == StateIdle || s.channelID == "" {
		s.mu.Unlock()
		return ErrNoConversation
	}

	msg := newOptimisticMessage(s.channelID, s.self, s.conv.Counterpart, content)
	s.feed = append(s.feed, msg)
	s.pending = append(s.pending, pendingSend{
		tag:     msg.ClientTag,
		content: msg.Content,
		localID: msg.ID,
	})
	s.notifyLocked()
	s.mu.Unlock()

	if err := s.transport.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// HandleBroadcast is the transport inbound handler. Events for channels
// other than the active one are dropped: the transport keeps delivering
// for channels the user navigated away from, because the service never
// unsubscribes. The sender's own echo reconciles its optimistic entry
// instead of appending a duplicate.
func (s *Session) HandleBroadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state == StateIdle {
		return
	}
	if msg.ChannelID != s.channelID {
		s.logger.Debug("drop broadcast for inactive channel", "channel", msg.ChannelID)
		return
	}

	if msg.Sender == s.self.ID {
		if idx, ok := s.matchPending(msg); ok {
			s.reconcile(idx, msg)
			s.notifyLocked()
			return
		}
		// Self-sent but nothing pending matches: another device on the
		// same account. Append like any other broadcast.
	}

	s.feed = append(s.feed, msg)
	s.notifyLocked()
}

// matchPending finds the pending send for a self-echo: by correlation tag
// when the service round-trips it, else the oldest pending entry with the
// same content.
func (s *Session) matchPending(msg Message) (int, bool) {
	if msg.ClientTag != "" {
		for i, p := range s.pending {
			if p.tag == msg.ClientTag {
				return i, true
			}
		}
		return 0, false
	}
	for i, p := range s.pending {
		if p.content == msg.Content {
			return i, true
		}
	}
	return 0, false
}

// reconcile replaces the optimistic entry with the server's version. If
// a history reload already dropped the optimistic entry, the server
// message is appended instead so the send is not lost.
func (s *Session) reconcile(pendingIdx int, msg Message) {
	p := s.pending[pendingIdx]
	s.pending = append(s.pending[:pendingIdx], s.pending[pendingIdx+1:]...)

	for i := range s.feed {
		if s.feed[i].ID == p.localID {
			s.feed[i] = msg
			return
		}
	}
	s.feed = append(s.feed, msg)
}

// Close tears the session down: the feed is cleared and the update stream
// ends. The transport connection itself belongs to the owning shell and
// stays open for any next session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.state = StateIdle
	s.feed = nil
	s.pending = nil
	close(s.updates)
}

// notifyLocked signals a change without blocking; callers hold s.mu.
func (s *Session) notifyLocked() {
	if s.closed {
		return
	}
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
