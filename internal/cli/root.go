package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersion is called from main to inject build-time version info.
func SetVersion(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "phoneverify",
		Short: "Phone verification and SMS dispatch service",
		Long: `phoneverify issues one-time SMS codes, confirms them, and routes each
message to the right gateway by country prefix, falling back to a test
channel when a gateway is down.

Get started (test channel, codes are returned in responses):
  phoneverify start --sms-provider test`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "Output in JSON format")

	root.AddCommand(
		newStartCmd(),
		newConfigCmd(),
		newNormalizeCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// changedFlags collects the flags the user set explicitly, keyed by flag
// name, for config.Load's override map.
func changedFlags(fs *pflag.FlagSet, names ...string) map[string]string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		if want[f.Name] {
			out[f.Name] = f.Value.String()
		}
	})
	return out
}
