package cli

import (
	"context"
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agrilink/agrichat/internal/chat"
	"github.com/agrilink/agrichat/internal/transport"
	"github.com/agrilink/agrichat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive messaging UI",
	Long: `Open the two-pane messaging UI: your conversations on the left, the
active chat on the right.

Keys:
  up/down    move the selection
  ctrl+o     open the selected conversation
  ctrl+t     pick a new contact to chat with
  ctrl+r     retry a failed load
  enter      send the composed message
  ctrl+c     quit`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("chat needs a terminal; use 'agrichat conversations' for scripted output")
	}

	ctx := context.Background()

	tr := transport.New(cfg.SocketURL, transport.Options{
		Reconnect:        cfg.Reconnect,
		ReconnectMaxWait: cfg.ReconnectMaxWait,
		Logger:           logger,
	})
	if err := tr.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := tr.Close(); err != nil {
			logger.Warn("close transport", "error", err)
		}
	}()

	directory := chat.NewDirectory(apiClient, sess.User)
	session := chat.NewSession(sess.User, tr, apiClient, logger)
	defer session.Close()

	// One connection, one listener: this session is the only consumer of
	// inbound broadcasts for the lifetime of the UI.
	tr.OnMessage(session.HandleBroadcast)

	model := tui.New(sess.User, session, directory, logger)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
