// Package cmd implements the ragline command line interface.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ragline/internal/config"
	"github.com/corvid-labs/ragline/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "ragline",
	Short: "ragline - retrieval-augmented chat over your own documents",
	Long: `ragline ingests documents into a vector store and answers questions
with a local Ollama model, grounding every reply in the most relevant
stored chunks and the recent conversation.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads and validates configuration, then installs the
// configured logger as the process default.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)

	return cfg, logger, nil
}
