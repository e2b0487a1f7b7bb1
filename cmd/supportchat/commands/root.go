package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"supportchat/internal/api"
	"supportchat/internal/bot"
	"supportchat/internal/config"
	"supportchat/internal/store"
	"supportchat/internal/tui"
)

var (
	verbose        bool
	rollbackUnsent bool
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "supportchat",
		Short: "Chat with the Smart Customer Support assistant from the terminal",
		Long: `supportchat is a TUI client for the Smart Customer Support backend.
Sign in with your name, email and contact number, then chat with the AI
support assistant across multiple persistent conversations.`,
		RunE: runTUI,
	}

	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&rollbackUnsent, "rollback-unsent", false,
		"Remove messages from the transcript when the backend rejects them")
	rootCmd.AddCommand(NewShowCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	client := api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, logger)
	st := store.New(client, bot.NewCanned(cfg.ReplyDelay), logger)
	st.SetRollbackOnFailure(rollbackUnsent)

	return tui.Run(client, st, logger)
}

// buildLogger writes logs to a file since the TUI owns the terminal.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zcfg.OutputPaths = []string{cfg.LogFile}
	zcfg.ErrorOutputPaths = []string{cfg.LogFile}
	return zcfg.Build()
}
