package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compozy/molrag/pkg/version"
)

// VersionCmd prints build information.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// Skip configuration loading so version works without a valid config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			render := newRendererFor(cmd)
			if render.format == OutputFormatJSON {
				return render.writeJSON(info)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "molrag %s (commit %s, built %s, %s)\n",
				info.Version, info.CommitHash, info.BuildDate, info.GoVersion)
			return err
		},
	}
}
