package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/allyourbase/phoneverify/internal/cli/ui"
	"github.com/allyourbase/phoneverify/internal/phone"
)

type normalizeResult struct {
	Input     string   `json:"input"`
	Canonical string   `json:"canonical"`
	Formatted string   `json:"formatted"`
	Valid     bool     `json:"valid"`
	Region    string   `json:"region,omitempty"`
	Operator  string   `json:"operator,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

func newNormalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <phone>...",
		Short: "Print the canonical form of phone numbers",
		Long: `Normalize each argument the way the service keys verification codes
and run the format validator on it.

Examples:
  phoneverify normalize "90 123 45 67" 89161234567
  phoneverify normalize --region uz +998901234567 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runNormalize,
	}
	cmd.Flags().String("region", "", "Validation rules: uz, ru, international (default auto)")
	return cmd
}

func runNormalize(cmd *cobra.Command, args []string) error {
	regionFlag, _ := cmd.Flags().GetString("region")
	region := phone.ParseRegion(regionFlag)
	v := phone.NewValidator()

	results := make([]normalizeResult, 0, len(args))
	for _, raw := range args {
		res := v.Validate(raw, region)
		results = append(results, normalizeResult{
			Input:     raw,
			Canonical: phone.Canonical(raw),
			Formatted: res.Formatted,
			Valid:     res.IsValid,
			Region:    res.Region,
			Operator:  res.Operator,
			Errors:    res.Errors,
			Warnings:  res.Warnings,
		})
	}

	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), results)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INPUT\tCANONICAL\tREGION\tOPERATOR\tSTATUS")
	for _, r := range results {
		status := ui.SymbolCheck + " valid"
		if !r.Valid {
			status = ui.SymbolCross + " " + strings.Join(r.Errors, "; ")
		} else if len(r.Warnings) > 0 {
			status = ui.SymbolWarning + " " + strings.Join(r.Warnings, "; ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Input, r.Canonical, dash(r.Region), dash(r.Operator), status)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
