package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/epiderma/internal/assistant"
	"github.com/raphaelgruber/epiderma/internal/conversation"
	"github.com/raphaelgruber/epiderma/internal/models"
)

var (
	analyzeJSON       bool
	analyzeOutputFile string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Analyze a skin photo",
	Long: `Send a photo to the analysis service and print the severity, the detected
lesions and the suggested treatment.

Images must be under the configured upload limit (5MB by default).

Examples:
  epiderma analyze selfie.jpg
  epiderma analyze ~/Pictures/cheek.png --json
  epiderma analyze cheek.png --json -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the reply and raw analysis as JSON")
	analyzeCmd.Flags().StringVarP(&analyzeOutputFile, "output", "o", "", "write output to file")
}

// analyzeOutput is the --json document.
type analyzeOutput struct {
	Reply    string                 `json:"reply"`
	Analysis *models.AnalysisResult `json:"analysis"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	upload, err := assistant.LoadUpload(assistant.CleanPath(args[0]), orch.MaxUploadBytes())
	if err != nil {
		return userError(err)
	}

	err = runWithProgress(cmd.Context(), cmd.ErrOrStderr(), isTerminal(os.Stderr), "Analyzing "+upload.Name+"...",
		func(ctx context.Context) error {
			return orch.SubmitImage(ctx, upload)
		})
	if err != nil {
		return userError(err)
	}

	reply, ok := lastBotReply(orch.Store())
	if !ok {
		return fmt.Errorf("no reply recorded")
	}

	out := cmd.OutOrStdout()
	if analyzeOutputFile != "" {
		f, err := os.Create(analyzeOutputFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(analyzeOutput{Reply: reply.Text, Analysis: reply.Analysis})
	}
	printReply(out, reply)
	return nil
}

// lastBotReply returns the most recent settled bot message.
func lastBotReply(store *conversation.Store) (models.Message, bool) {
	msgs := store.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == models.SenderBot && !msgs[i].Thinking && msgs[i].ID != conversation.WelcomeID {
			return msgs[i], true
		}
	}
	return models.Message{}, false
}

// printReply writes a bot message and its analysis, if any.
func printReply(w io.Writer, msg models.Message) {
	fmt.Fprintln(w, msg.Text)

	a := msg.Analysis
	if a == nil {
		return
	}

	if len(a.Detections) > 0 {
		fmt.Fprintf(w, "\nDetections (%d):\n", len(a.Detections))
		for i, d := range a.Detections {
			line := fmt.Sprintf("  %d. %s", i+1, d.Label)
			if d.Confidence > 0 {
				line += fmt.Sprintf(" (%.0f%%)", d.Confidence*100)
			}
			if d.Box.Valid() {
				line += fmt.Sprintf("  y %.0f-%.0f  x %.0f-%.0f", d.Box.YMin(), d.Box.YMax(), d.Box.XMin(), d.Box.XMax())
			}
			fmt.Fprintln(w, line)
		}
	}

	if a.TreatmentSuggestions != "" {
		fmt.Fprintf(w, "\nRecommended approach:\n%s\n", strings.TrimSpace(a.TreatmentSuggestions))
	}
	if a.Disclaimer != "" {
		fmt.Fprintf(w, "\n%s\n", a.Disclaimer)
	}
}
