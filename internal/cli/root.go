// Package cli provides the command-line interface for agrichat.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agrilink/agrichat/internal/api"
	"github.com/agrilink/agrichat/internal/config"
	"github.com/agrilink/agrichat/internal/identity"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, identity, and API client
	cfg       config.Config
	sess      identity.Session
	apiClient *api.Client

	logger     *slog.Logger
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "agrichat",
	Short: "Terminal messaging client for the AgriLink marketplace",
	Long: `Agrichat is the direct-messaging client for the AgriLink agricultural
marketplace: chat with the farmers and buyers you trade with, straight
from the terminal.

It reads the session your AgriLink login left behind; it does not log in
itself. Run the marketplace app first if 'whoami' says you are not
authenticated.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Nothing to wire for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		if cmd.Name() == "chat" {
			// The TUI owns the terminal; log to file only.
			logger, logCleanup = config.SetupFileLogger(cfg.LogFile, level)
		} else {
			logger, logCleanup = config.SetupLogger(cfg.LogFile, level)
		}

		sess, err = identity.Load(cfg.SessionFile)
		if err != nil {
			return fmt.Errorf("no AgriLink session (log in through the marketplace first): %w", err)
		}

		apiClient = api.New(cfg.APIURL, sess.Token, cfg.APITimeout)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			if err := logCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(contactsCmd)
	rootCmd.AddCommand(whoamiCmd)
}
