package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/compozy/molrag/engine/answer"
	"github.com/compozy/molrag/pkg/config"
	"github.com/compozy/molrag/pkg/logger"
)

const (
	chatPrompt = "> "
	chatReset  = "/reset"
)

// ChatCmd runs an interactive session. History lives in memory only.
func ChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Long: "Start an interactive session. Previous turns are sent with every question.\n" +
			"Type /reset to clear the history and exit or quit to leave.",
		Args: cobra.NoArgs,
		RunE: handleChatCmd,
	}
	cmd.Flags().Int("top-k", 0, "Number of passages to retrieve")
	cmd.Flags().String("metrics-addr", "", "Serve prometheus metrics on this address while chatting")
	return cmd
}

func handleChatCmd(cmd *cobra.Command, _ []string) error {
	render := newRendererFor(cmd)
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if a.cfg.Monitoring.Enabled {
			if _, err := a.monitoring.Serve(ctx); err != nil {
				logger.FromContext(ctx).Warn("Metrics endpoint unavailable", "error", err)
			}
		}
		session := &chatSession{
			router: a.router,
			render: render,
			cfg:    a.cfg,
			prompt: render.format == OutputFormatText,
		}
		return session.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	})
}

// chatSession owns the conversation history of one interactive run.
type chatSession struct {
	router  answerer
	render  *Renderer
	cfg     *config.Config
	prompt  bool
	history []answer.ConversationTurn
}

// Run reads one question per line until EOF, exit or quit. A failed question
// is reported and leaves the history unchanged.
func (s *chatSession) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	log := logger.FromContext(ctx)
	scanner := bufio.NewScanner(in)
	for {
		if s.prompt {
			fmt.Fprint(out, chatPrompt)
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case chatReset:
			s.history = nil
			log.Info("Conversation history cleared")
			continue
		}
		if err := s.ask(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			reportError(ctx, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

func (s *chatSession) ask(ctx context.Context, query string) error {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()
	result, err := s.router.GenerateAnswer(ctx, query, s.history)
	if err != nil {
		return err
	}
	s.history = result.History
	return s.render.Answer(result, false)
}
