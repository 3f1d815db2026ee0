package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kamusis/skillroute/internal/config"
	"github.com/kamusis/skillroute/internal/logger"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:          "skillroute",
	Short:        "skillroute — explainable intent router for agent skills",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `skillroute routes free-text intents to registered skills with a TF-IDF
vector model and keeps it calibrated with recorded traces, a labeled
regression dataset and a sequential probability ratio test.

State lives in ~/.skillroute/ (override with SKILLROUTE_HOME).`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to skillroute.yaml (default ~/.skillroute/skillroute.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config or the default config file.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w\nRun 'skillroute init' first.", err)
	}
	return cfg, nil
}

// newLogger builds the command logger; --log-level wins over the config file.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Logging.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	return logger.NewLogger(cfg.Logging.Env, level)
}

// setup loads config and logger for commands that need both.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
