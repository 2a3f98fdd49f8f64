// Package tui renders the messaging UI: the conversation list on the
// left, the active conversation's feed and composer on the right. It is
// a pure consumer of the chat core; all messaging rules live there.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/agrilink/agrichat/internal/chat"
	"github.com/agrilink/agrichat/internal/identity"
)

// Theme holds the color scheme for the chat display.
type Theme struct {
	Accent   lipgloss.Color
	Own      lipgloss.Color
	Other    lipgloss.Color
	Hint     lipgloss.Color
	Error    lipgloss.Color
	Selected lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Accent:   lipgloss.Color("#00D787"), // green
	Own:      lipgloss.Color("#5FAFD7"), // light blue
	Other:    lipgloss.Color("#D7D7D7"), // light gray
	Hint:     lipgloss.Color("#6C6C6C"), // dim gray
	Error:    lipgloss.Color("#FF005F"), // red
	Selected: lipgloss.Color("#00AF5F"), // dark green
}

func (t Theme) accentStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
}

func (t Theme) ownStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Own)
}

func (t Theme) otherStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Other)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) selectedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Selected).Bold(true)
}

// pane is which list the left column shows.
type pane int

const (
	paneConversations pane = iota
	paneCandidates
)

// sessionUpdateMsg signals that the session's snapshot changed.
type sessionUpdateMsg struct {
	ok bool
}

// conversationsMsg carries a refreshed directory listing.
type conversationsMsg struct {
	conversations []chat.Conversation
	err           error
}

// candidatesMsg carries the new-conversation picker entries.
type candidatesMsg struct {
	candidates []identity.User
	err        error
}

// startedMsg reports a StartConversation outcome.
type startedMsg struct {
	err error
}

// Model is the bubbletea model for the messaging UI.
type Model struct {
	self      identity.User
	session   *chat.Session
	directory *chat.Directory
	logger    *slog.Logger
	theme     Theme

	input textinput.Model

	pane          pane
	conversations []chat.Conversation
	candidates    []identity.User
	cursor        int
	statusErr     error

	width  int
	height int
}

// New creates the messaging UI model.
func New(self identity.User, session *chat.Session, directory *chat.Directory, logger *slog.Logger) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()

	if logger == nil {
		logger = slog.Default()
	}

	return Model{
		self:      self,
		session:   session,
		directory: directory,
		logger:    logger,
		theme:     defaultTheme,
		input:     ti,
		width:     80,
		height:    24,
	}
}

// Init loads the directory and starts listening for session updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadConversations(), m.waitForUpdate())
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case sessionUpdateMsg:
		if !msg.ok {
			return m, nil
		}
		// Snapshot is re-read in View; just keep listening.
		return m, m.waitForUpdate()

	case conversationsMsg:
		if msg.err != nil {
			m.statusErr = msg.err
			return m, nil
		}
		m.statusErr = nil
		m.conversations = msg.conversations
		if m.cursor >= len(m.conversations) {
			m.cursor = 0
		}
		return m, nil

	case candidatesMsg:
		if msg.err != nil {
			m.statusErr = msg.err
			m.pane = paneConversations
			return m, nil
		}
		m.statusErr = nil
		m.candidates = msg.candidates
		m.pane = paneCandidates
		m.cursor = 0
		return m, nil

	case startedMsg:
		m.pane = paneConversations
		m.cursor = 0
		if msg.err != nil {
			// Stale-list failures still mean the conversation exists
			// server-side; surface the error either way and refresh.
			m.statusErr = msg.err
		}
		return m, m.loadConversations()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.pane == paneCandidates {
			m.pane = paneConversations
			m.cursor = 0
			return m, nil
		}
		return m, tea.Quit

	case "up", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "ctrl+n":
		if m.cursor < m.listLen()-1 {
			m.cursor++
		}
		return m, nil

	case "ctrl+o":
		if m.pane == paneCandidates {
			return m, m.openCandidate()
		}
		return m, m.openConversation()

	case "ctrl+t":
		return m, m.loadCandidates()

	case "ctrl+r":
		if m.session.Snapshot().Err != nil {
			m.session.RetryHistory(context.Background())
			return m, nil
		}
		return m, m.loadConversations()

	case "enter":
		cmd := m.sendMessage()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) listLen() int {
	if m.pane == paneCandidates {
		return len(m.candidates)
	}
	return len(m.conversations)
}

func (m Model) openConversation() tea.Cmd {
	if m.cursor >= len(m.conversations) {
		return nil
	}
	conv := m.conversations[m.cursor]
	return func() tea.Msg {
		if err := m.session.Select(context.Background(), conv); err != nil {
			m.logger.Warn("select conversation failed", "error", err)
			return conversationsMsg{err: err}
		}
		return nil
	}
}

func (m Model) openCandidate() tea.Cmd {
	if m.cursor >= len(m.candidates) {
		return nil
	}
	candidate := m.candidates[m.cursor]
	return func() tea.Msg {
		err := m.directory.StartConversation(context.Background(), candidate)
		return startedMsg{err: err}
	}
}

func (m *Model) sendMessage() tea.Cmd {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return nil
	}
	if err := m.session.Send(content); err != nil {
		m.statusErr = err
		return nil
	}
	m.statusErr = nil
	m.input.SetValue("")
	return nil
}

func (m Model) loadConversations() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		conversations, err := m.directory.List(ctx)
		return conversationsMsg{conversations: conversations, err: err}
	}
}

func (m Model) loadCandidates() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		candidates, err := m.directory.Candidates(ctx)
		return candidatesMsg{candidates: candidates, err: err}
	}
}

// waitForUpdate blocks on the session's coalesced change signal.
func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		_, ok := <-m.session.Updates()
		return sessionUpdateMsg{ok: ok}
	}
}

// View renders the two-pane layout.
func (m Model) View() tea.View {
	left := m.renderList()
	right := m.renderChat()
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return tea.NewView(body)
}

func (m Model) renderList() string {
	width := m.width / 3
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	if m.pane == paneCandidates {
		b.WriteString(m.theme.accentStyle().Render("Start a conversation") + "\n\n")
		if len(m.candidates) == 0 {
			b.WriteString(m.theme.hintStyle().Render("No new users to chat with.") + "\n")
		}
		for i, u := range m.candidates {
			line := fmt.Sprintf("%s (%s)", u.Name, u.Role)
			b.WriteString(m.renderListLine(line, i) + "\n")
		}
		b.WriteString("\n" + m.theme.hintStyle().Render("ctrl+o open · esc back"))
	} else {
		b.WriteString(m.theme.accentStyle().Render("Conversations") + "\n\n")
		if len(m.conversations) == 0 {
			b.WriteString(m.theme.hintStyle().Render("No conversations yet.") + "\n")
		}
		active := m.session.Snapshot().Conversation.Counterpart.ID
		for i, c := range m.conversations {
			line := c.Counterpart.Name
			if c.Counterpart.ID == active {
				line = "* " + line
			}
			b.WriteString(m.renderListLine(line, i) + "\n")
		}
		b.WriteString("\n" + m.theme.hintStyle().Render("ctrl+o open · ctrl+t new · ctrl+r refresh"))
	}

	return lipgloss.NewStyle().Width(width).Render(b.String())
}

func (m Model) renderListLine(line string, i int) string {
	if i == m.cursor {
		return m.theme.selectedStyle().Render("> " + line)
	}
	return "  " + line
}

func (m Model) renderChat() string {
	snap := m.session.Snapshot()

	var b strings.Builder
	switch snap.State {
	case chat.StateIdle:
		b.WriteString(m.theme.hintStyle().Render("Select a conversation to start chatting.") + "\n")
	case chat.StateLoading:
		b.WriteString(m.theme.accentStyle().Render(snap.Conversation.Counterpart.Name) + "\n\n")
		b.WriteString(m.theme.hintStyle().Render("Loading messages...") + "\n")
	case chat.StateReady:
		b.WriteString(m.theme.accentStyle().Render(snap.Conversation.Counterpart.Name) + "\n\n")
		b.WriteString(m.renderFeed(snap))
	}

	if snap.Err != nil {
		b.WriteString("\n" + m.theme.errorStyle().Render(fmt.Sprintf("✗ %v", snap.Err)))
		b.WriteString("\n" + m.theme.hintStyle().Render("ctrl+r to retry"))
	} else if m.statusErr != nil {
		b.WriteString("\n" + m.theme.errorStyle().Render(fmt.Sprintf("✗ %v", m.statusErr)))
	}

	b.WriteString("\n\n" + m.input.View())
	return b.String()
}

func (m Model) renderFeed(snap chat.Snapshot) string {
	// Fit the tail of the feed into the available rows; scrollback
	// beyond that is the service's history, not ours.
	rows := m.height - 8
	if rows < 4 {
		rows = 4
	}
	msgs := snap.Messages
	if len(msgs) > rows {
		msgs = msgs[len(msgs)-rows:]
	}

	var b strings.Builder
	for _, msg := range msgs {
		if msg.Sender == m.self.ID {
			b.WriteString(m.theme.ownStyle().Render("you: "+msg.Content) + "\n")
		} else {
			b.WriteString(m.theme.otherStyle().Render(snap.Conversation.Counterpart.Name+": "+msg.Content) + "\n")
		}
	}
	return b.String()
}
