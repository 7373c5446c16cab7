package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dietbot/internal/access"
	"dietbot/internal/advisory"
	"dietbot/internal/bot"
	"dietbot/internal/config"
	"dietbot/internal/conversation"
	"dietbot/internal/llm"
	"dietbot/internal/quota"
	"dietbot/internal/store"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dietbot",
	Short: "Admin-gated Telegram diet and fitness assistant",
	Long: `dietbot is a Telegram bot that keeps per-user diet and workout
records in SQLite and answers nutrition questions through an LLM
provider, with a hard per-user request ceiling.

Access is closed by default: a new user is registered on first contact
and waits until the configured administrator approves the request.

Run without arguments to start the bot.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Full validation happens only when the bot itself runs; the
		// admin subcommands need nothing beyond the database path.
		logger, err = buildLogger(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot()
	},
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Logging.Format == "text" {
		zcfg = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if err := level.Set(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("unknown log level %q", cfg.Logging.Level)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

func runBot() error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	client, err := llm.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	gate := access.NewGate(st, cfg.AdminID, logger)
	tracker := quota.NewTracker(st, cfg.Limits.MaxAdvisoryRequests)
	broker := advisory.NewBroker(st, tracker, client, logger)
	engine := conversation.NewEngine(st, gate, broker, logger)

	b, err := bot.New(cfg, st, gate, engine, broker, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("dietbot starting",
		zap.Int64("admin_id", cfg.AdminID),
		zap.String("provider", cfg.LLM.Provider),
		zap.Int("advisory_ceiling", cfg.Limits.MaxAdvisoryRequests))

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("dietbot stopped")
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(grantCmd, revokeCmd, usersCmd, statsCmd, initConfigCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
