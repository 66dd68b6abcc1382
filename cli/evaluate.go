package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// EvaluateCmd runs retrieval and the judge without generating an answer.
func EvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate [query]",
		Short: "Show how the judge classifies the retrieved context for a query",
		RunE:  handleEvaluateCmd,
	}
	cmd.Flags().Int("top-k", 0, "Number of passages to retrieve")
	return cmd
}

func handleEvaluateCmd(cmd *cobra.Command, args []string) error {
	query, err := readQuery(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	render := newRendererFor(cmd)
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ctx, cancel := withTimeout(ctx, a.cfg)
		defer cancel()
		return runEvaluate(ctx, a.router, render, query)
	})
}

func runEvaluate(ctx context.Context, r answerer, render *Renderer, query string) error {
	bundle, err := r.Retrieve(ctx, query, 0)
	if err != nil {
		return err
	}
	verdict, err := r.Evaluate(ctx, query, bundle.Context)
	if err != nil {
		return err
	}
	return render.Verdict(query, verdict, bundle)
}
