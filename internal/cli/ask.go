package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/epiderma/internal/assistant"
)

var askImage string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant a question",
	Long: `Ask a single question and print the reply.

With --image the photo is analyzed first, and the question is sent with the
analysis (severity and detected lesions) as context.

Examples:
  epiderma ask "How long until benzoyl peroxide works?"
  epiderma ask "Should I see a dermatologist?" --image cheek.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askImage, "image", "", "analyze this image first and ask about it")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	ctx := cmd.Context()
	tty := isTerminal(os.Stderr)

	if askImage != "" {
		upload, err := assistant.LoadUpload(assistant.CleanPath(askImage), orch.MaxUploadBytes())
		if err != nil {
			return userError(err)
		}
		err = runWithProgress(ctx, cmd.ErrOrStderr(), tty, "Analyzing "+upload.Name+"...",
			func(ctx context.Context) error {
				return orch.SubmitImage(ctx, upload)
			})
		if err != nil {
			return userError(err)
		}
		if orch.Store().ActivePane().Analysis == nil {
			// The analysis failed; the question still goes out without context.
			if reply, ok := lastBotReply(orch.Store()); ok {
				fmt.Fprintln(cmd.ErrOrStderr(), reply.Text)
			}
		}
	}

	err := runWithProgress(ctx, cmd.ErrOrStderr(), tty, "Thinking...",
		func(ctx context.Context) error {
			return orch.SendChatText(ctx, question)
		})
	if err != nil {
		return userError(err)
	}

	reply, ok := lastBotReply(orch.Store())
	if !ok {
		return fmt.Errorf("no reply recorded")
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
	return nil
}
