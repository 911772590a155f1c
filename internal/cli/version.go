package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allyourbase/phoneverify/internal/cli/ui"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print phoneverify version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"version": buildVersion,
					"commit":  buildCommit,
					"date":    buildDate,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s phoneverify %s (commit: %s, built: %s)\n",
				ui.BrandEmoji, buildVersion, buildCommit, buildDate)
			return nil
		},
	}
}
