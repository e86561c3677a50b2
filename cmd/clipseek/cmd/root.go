// Package cmd implements the CLI commands for clipseek.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipseek/clipseek/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "clipseek",
	Short:   "Semantic search over video transcripts",
	Version: version.Short(),
	Long: `clipseek ingests local video files, transcribes them with a Whisper
sidecar, chunks the transcripts semantically, and indexes the chunks into a
dense vector store and a SQLite FTS5 lexical index.

The server exposes a REST API for hybrid search, clip cutting, queue
management, and remote video downloads.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/clipseek, $HOME/.clipseek)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}
