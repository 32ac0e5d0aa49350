package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openvpi/MakeDiffSinger/internal/config"
)

// keyHelp renders the supported keys with their environment variables.
func keyHelp() string {
	var b strings.Builder
	for _, k := range config.Keys() {
		fmt.Fprintf(&b, "  %-24s (env: %s)\n", k, config.EnvName(k))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Configuration is stored in ~/.config/tgenhance/config.toml.
Every setting can be overridden by an environment variable, and refinement
parameters by the flags of "tgenhance enhance".

Supported settings:
` + keyHelp(),
		Example: `  tgenhance config set refine.min_space 0.05
  tgenhance config get batch.parallel
  tgenhance config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the config file.

The value is rejected if it would make the configuration invalid, for
example refine.f0_min above refine.f0_max.`,
		Example: `  tgenhance config set refine.breath_db -50
  tgenhance config set batch.output_dir ~/datasets/refined`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get the effective value of a setting.

Environment variable overrides are applied.`,
		Example: `  tgenhance config get refine.min_space`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, args[0])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List the effective value of every setting.

Values overridden by an environment variable are marked "env".`,
		Example: `  tgenhance config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env)
		},
	}
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, key, value string) error {
	if err := config.SaveKey(key, value); err != nil {
		return err
	}
	if name := config.EnvName(key); env.Getenv(name) != "" {
		fmt.Fprintf(env.Stderr, "Warning: %s is set and overrides this value\n", name)
	}
	fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// runConfigGet handles the "config get" command.
func runConfigGet(env *Env, key string) error {
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		return err
	}
	value, err := config.Get(cfg, key)
	if err != nil {
		return err
	}
	if value != "" {
		fmt.Fprintln(env.Stdout, value)
	}
	return nil
}

// runConfigList handles the "config list" command.
func runConfigList(env *Env) error {
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		return err
	}
	values := config.List(cfg)

	keys := config.Keys()
	rows := make([][]string, len(keys))
	for i, k := range keys {
		source := ""
		if env.Getenv(config.EnvName(k)) != "" {
			source = "env"
		}
		rows[i] = []string{k, values[k], source}
	}
	fmt.Fprintln(env.Stdout, renderTable([]string{"Key", "Value", "Source"}, rows, nil))
	return nil
}
