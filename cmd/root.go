package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "converse",
	Short: "Converse - conversational AI backend with retrieval-augmented generation",
	Long: `Converse is an HTTP backend for conversational AI applications.
It keeps multi-turn session history in memory, augments user questions
with relevant segments from a pgvector knowledge base, and streams model
replies over Server-Sent Events.

Running converse without a subcommand starts the HTTP server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command. main calls this and exits non-zero on
// error.
func Execute() error {
	return rootCmd.Execute()
}
