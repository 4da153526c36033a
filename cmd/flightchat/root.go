package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/miradorstack/flightchat/internal/config"
	"github.com/miradorstack/flightchat/internal/utils"
)

var (
	configPath string
	envFile    string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "flightchat",
	Short: "Conversational assistant for UAV flight telemetry",
	Long: `flightchat answers questions about a drone flight log. Questions about
anomalies, flight metrics or anything else are routed to the matching
reasoning path and answered by an LLM, with per-session conversation memory.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadRootConfig,
}

func loadRootConfig(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON, utils.FileOptions{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	slog.SetDefault(logger)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (defaults to $FLIGHTCHAT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before the configuration")
}
