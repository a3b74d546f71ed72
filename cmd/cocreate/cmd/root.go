package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cocreate",
	Short: "Headless client for a CoCreate room",
	Long: `cocreate joins a collaborative room from the terminal: it follows
presence, mirrors the shared document, and can seed it from a file.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "ws://localhost:8080/ws", "relay websocket URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "session token when the relay has auth enabled")
}

// Execute runs the root command. Called once from main.
func Execute() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
