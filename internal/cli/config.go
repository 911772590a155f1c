package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/allyourbase/phoneverify/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit configuration",
		Long: `Print the resolved configuration: defaults, phoneverify.toml, PV_*
environment variables and flags, merged. Secrets are masked unless
--show-secrets is given.`,
		RunE: runConfigShow,
	}
	cmd.PersistentFlags().String("config", "", "Path to phoneverify.toml")
	cmd.Flags().Bool("show-secrets", false, "Print secrets in clear text")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print resolved configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
	show.Flags().Bool("show-secrets", false, "Print secrets in clear text")

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value by dotted key.
Examples: server.port, sms.provider, verification.expiry`,
		Args: cobra.ExactArgs(1),
		RunE: runConfigGet,
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value in phoneverify.toml",
		Long: `Set a value in the config file, creating it if needed.
Examples:
  phoneverify config set server.port 3000
  phoneverify config set sms.provider regional
  phoneverify config set fraud.blocked_prefixes +99890,+7999`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default phoneverify.toml",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")

	cmd.AddCommand(show, get, set, initCmd)
	return cmd
}

func configPathFlag(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPathFlag(cmd), nil)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if secrets, _ := cmd.Flags().GetBool("show-secrets"); !secrets {
		cfg = cfg.Redacted()
	}

	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), cfg)
	}
	out, err := cfg.ToTOML()
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPathFlag(cmd), nil)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	value, err := config.GetValue(cfg, args[0])
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"key": args[0], "value": value})
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := configPathFlag(cmd)
	if path == "" {
		path = config.DefaultPath
	}
	key, value := args[0], args[1]
	if !config.IsValidKey(key) {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err := config.SetValue(path, key, value); err != nil {
		return fmt.Errorf("setting config value: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s = %s\n", key, value)
	fmt.Fprintf(out, "Written to %s\n", path)

	// Values are often set one at a time, so an invalid intermediate state
	// is reported but not fatal.
	if _, err := config.Load(path, nil); err != nil {
		msg := err.Error()
		if _, rest, ok := strings.Cut(msg, ": "); ok {
			msg = rest
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Note: %s\n", msg)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configPathFlag(cmd)
	if path == "" {
		path = config.DefaultPath
	}
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.GenerateDefault(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
