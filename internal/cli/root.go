// Package cli provides the command-line interface for epiderma.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/epiderma/internal/assistant"
	"github.com/raphaelgruber/epiderma/internal/client"
	"github.com/raphaelgruber/epiderma/internal/config"
	"github.com/raphaelgruber/epiderma/internal/conversation"
	"github.com/raphaelgruber/epiderma/internal/telemetry"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	apiURL     string
	configPath string

	// Initialized in PersistentPreRunE
	cfg      config.Config
	logger   *slog.Logger
	orch     *assistant.Orchestrator
	tracing  *telemetry.Provider
	closeLog func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "epiderma",
	Short: "AI skin analysis assistant",
	Long: `Epiderma sends a photo of your skin to an analysis service and shows the
detected lesions, an overall severity and treatment suggestions. Follow-up
questions are answered with the latest analysis as context.

Run without a subcommand in a terminal to open the chat screen.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		return setup(cmd.Context(), interactive(cmd))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
			return cmd.Help()
		}
		return runChat(cmd)
	},
}

// interactive reports whether cmd hands the terminal to the chat screen, in
// which case logs go to the log file only.
func interactive(cmd *cobra.Command) bool {
	return cmd.Name() == "chat" || (!cmd.HasParent() && isTerminal(os.Stdout))
}

// setup loads configuration and wires the orchestrator shared by all commands.
func setup(ctx context.Context, quietConsole bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The console only gets logs when asked for and not owned by the TUI.
	var console io.Writer
	if verbose && !quietConsole {
		console = os.Stderr
	}
	logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel, console)
	slog.SetDefault(logger)

	tracing, err = telemetry.NewProvider(ctx, telemetry.Config{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceVersion: Version,
	}, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	backend := client.New(cfg.APIURL, client.WithUserAgent("epiderma/"+Version))
	store := conversation.NewStore(conversation.WithLogger(logger))
	orch = assistant.New(backend, store,
		assistant.WithLogger(logger),
		assistant.WithMaxUploadBytes(cfg.MaxUploadBytes),
		assistant.WithTimeout(cfg.RequestTimeout),
	)

	logger.Debug("epiderma starting", "version", Version, "api_url", backend.BaseURL(), "tracing", tracing.Enabled())
	return nil
}

func teardown() {
	if tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		cancel()
	}
	if closeLog != nil {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}
}

// ExecuteContext runs the root command. Cancelling ctx aborts in-flight
// requests.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "analysis service URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(versionCmd)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// userError replaces validation errors with their user-facing text.
func userError(err error) error {
	if text, ok := assistant.UserMessage(err); ok {
		return fmt.Errorf("%s", text)
	}
	return err
}
