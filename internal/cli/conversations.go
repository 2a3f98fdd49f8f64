package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrilink/agrichat/internal/chat"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List your open conversations",
	RunE:  runConversations,
}

func runConversations(cmd *cobra.Command, args []string) error {
	directory := chat.NewDirectory(apiClient, sess.User)

	conversations, err := directory.List(context.Background())
	if err != nil {
		return err
	}

	if len(conversations) == 0 {
		fmt.Println("No conversations yet. Use 'agrichat contacts' to find someone to chat with.")
		return nil
	}

	for _, c := range conversations {
		fmt.Printf("%-24s %-8s %s\n",
			c.Counterpart.Name,
			c.Counterpart.Role,
			chat.ChannelID(sess.User.ID, c.Counterpart.ID))
	}
	fmt.Printf("\n%d conversation(s)\n", len(conversations))
	return nil
}
