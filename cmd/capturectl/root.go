package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/anime-shed/capture-inspector-go/internal/config"
	"github.com/anime-shed/capture-inspector-go/internal/container"
	"github.com/anime-shed/capture-inspector-go/internal/logger"
)

type rootOptions struct {
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "capturectl",
		Short: "Run capture sessions and quality checks from the command line",
		Long: `capturectl drives the capture inspector without the HTTP server.

It checks photos against a scene's capture requirements, runs whole
sessions through analysis, and moves analysis history in and out of the
local database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile != "" {
				if err := godotenv.Load(opts.envFile); err != nil {
					return fmt.Errorf("load %s: %w", opts.envFile, err)
				}
			}
			if opts.logLevel != "" {
				logger.SetLevel(opts.logLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load environment from this file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newScenesCmd(),
		newAssessCmd(),
		newRunCmd(),
		newUploadCmd(),
		newHistoryCmd(),
	)

	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openContainer loads configuration and builds the application graph
func openContainer() (*container.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return container.NewContainer(cfg)
}

// imageRef turns a relative file path into an absolute one and leaves URLs
// and blob references alone
func imageRef(ref string) string {
	if strings.Contains(ref, "://") || filepath.IsAbs(ref) {
		return ref
	}
	if abs, err := filepath.Abs(ref); err == nil {
		return abs
	}
	return ref
}
