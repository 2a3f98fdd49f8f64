package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrilink/agrichat/internal/chat"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List users you could start a conversation with",
	Long: `List marketplace users available for a new conversation: the opposite
role from yours, excluding anyone you already chat with.`,
	RunE: runContacts,
}

func runContacts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	directory := chat.NewDirectory(apiClient, sess.User)

	// Populate the directory first so existing counterparts are excluded.
	if _, err := directory.List(ctx); err != nil {
		return err
	}

	candidates, err := directory.Candidates(ctx)
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		fmt.Println("No new users to chat with.")
		return nil
	}

	for _, u := range candidates {
		fmt.Printf("%-24s %s\n", u.Name, u.Role)
	}
	return nil
}
