package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compozy/molrag/engine/answer"
	"github.com/compozy/molrag/engine/core"
	"github.com/compozy/molrag/engine/knowledge"
	"github.com/compozy/molrag/pkg/config"
	"github.com/compozy/molrag/pkg/logger"
)

// answerer is the slice of *answer.Router the commands depend on.
type answerer interface {
	GenerateAnswer(ctx context.Context, query string, history []answer.ConversationTurn) (*answer.AnswerResult, error)
	Retrieve(ctx context.Context, query string, k int) (*knowledge.ContextBundle, error)
	Evaluate(ctx context.Context, query, contextText string) (answer.Verdict, error)
}

// withApp builds the application for one command invocation and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, config.FromContext(ctx))
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}

// withTimeout bounds one question by runtime.request_timeout.
func withTimeout(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg == nil || cfg.Runtime.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cfg.Runtime.RequestTimeout)
}

// DescribeError turns core failures into a one-line message for the terminal.
func DescribeError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "Operation timed out"
	case errors.Is(err, context.Canceled):
		return "Operation was canceled"
	case errors.Is(err, answer.ErrEmptyQuery):
		return "Please provide a question"
	case errors.Is(err, answer.ErrRetrieval):
		return fmt.Sprintf("Knowledge base unavailable: %s", core.RedactError(err))
	case errors.Is(err, answer.ErrGeneration):
		return fmt.Sprintf("Model call failed: %s", core.RedactError(err))
	default:
		return core.RedactError(err)
	}
}

func reportError(ctx context.Context, err error) {
	logger.FromContext(ctx).Error(DescribeError(err))
}
