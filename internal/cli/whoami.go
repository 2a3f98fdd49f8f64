package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the identity the client is running as",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%s (%s, id %s)\n", sess.User.Name, sess.User.Role, sess.User.ID)
		return nil
	},
}
