package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/compozy/molrag/engine/answer"
)

// AskCmd answers a single question.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question",
		Long: "Retrieve context for the question, let the judge model route it, and print the answer.\n" +
			"Reads the question from stdin when no argument is given.",
		RunE: handleAskCmd,
	}
	cmd.Flags().String("history", "", "JSON file with prior turns: [{\"role\":\"user\",\"content\":\"...\"}]")
	cmd.Flags().Bool("show-history", false, "Include the updated history in JSON output")
	cmd.Flags().Int("top-k", 0, "Number of passages to retrieve")
	return cmd
}

func handleAskCmd(cmd *cobra.Command, args []string) error {
	query, err := readQuery(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	historyPath, err := cmd.Flags().GetString("history")
	if err != nil {
		return fmt.Errorf("failed to get history flag: %w", err)
	}
	history, err := loadHistory(historyPath)
	if err != nil {
		return err
	}
	showHistory, err := cmd.Flags().GetBool("show-history")
	if err != nil {
		return fmt.Errorf("failed to get show-history flag: %w", err)
	}
	render := newRendererFor(cmd)
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ctx, cancel := withTimeout(ctx, a.cfg)
		defer cancel()
		return runAsk(ctx, a.router, render, query, history, showHistory)
	})
}

func runAsk(
	ctx context.Context,
	r answerer,
	render *Renderer,
	query string,
	history []answer.ConversationTurn,
	showHistory bool,
) error {
	result, err := r.GenerateAnswer(ctx, query, history)
	if err != nil {
		return err
	}
	return render.Answer(result, showHistory)
}

// readQuery joins args, or reads stdin when there are none.
func readQuery(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := stdin.(*os.File); ok && isTerminal(f) {
		return "", fmt.Errorf("a question is required")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read question from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// loadHistory decodes a JSON array of loosely typed turns. Malformed entries
// are kept here and dropped by the router with a warning.
func loadHistory(path string) ([]answer.ConversationTurn, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", path, err)
	}
	return answer.HistoryFromMaps(entries), nil
}
