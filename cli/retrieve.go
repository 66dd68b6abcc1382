package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// RetrieveCmd prints the passages the router would see for a query.
func RetrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Show the passages retrieved for a query",
		RunE:  handleRetrieveCmd,
	}
	cmd.Flags().Int("top-k", 0, "Number of passages to retrieve")
	return cmd
}

func handleRetrieveCmd(cmd *cobra.Command, args []string) error {
	query, err := readQuery(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	topK, err := cmd.Flags().GetInt("top-k")
	if err != nil {
		return fmt.Errorf("failed to get top-k flag: %w", err)
	}
	render := newRendererFor(cmd)
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ctx, cancel := withTimeout(ctx, a.cfg)
		defer cancel()
		bundle, err := a.router.Retrieve(ctx, query, topK)
		if err != nil {
			return err
		}
		return render.Passages(bundle)
	})
}
