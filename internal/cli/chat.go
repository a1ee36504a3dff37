package cli

import (
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/epiderma/internal/tui"
)

var chatTheme string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat screen",
	Long: `Open the chat screen. Paste an image path (or type /image <path>) to analyze
a photo, then ask follow-up questions about the result.

Keys:
  enter      send message
  ctrl+t     toggle light/dark theme
  ctrl+l     clear the conversation
  pgup/pgdn  scroll the transcript
  esc        quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatTheme, "theme", "", "light or dark (overrides config)")
}

func runChat(cmd *cobra.Command) error {
	theme := cfg.Theme
	if chatTheme != "" {
		theme = chatTheme
	}
	return tui.Run(cmd.Context(), orch, tui.Options{Theme: theme, Logger: logger},
		cmd.InOrStdin(), cmd.OutOrStdout())
}
