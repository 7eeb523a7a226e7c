package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// listKeys are stored as YAML sequences; config set splits them on commas.
var listKeys = map[string]bool{
	"bams":                   true,
	"caller.args":            true,
	"caller.mpileup-args":    true,
	"annotator.args":         true,
	"filter.exclude-impacts": true,
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mutpeak configuration",
		Long: `Show, get, or set configuration values. Config is stored in ~/.mutpeak.yaml
unless --config names another file. Values shown include built-in defaults.`,
		Example: `  mutpeak config                                     # show effective config
  mutpeak config set annotator.backend snpeff        # switch predictor
  mutpeak config set filter.exclude-impacts LOW,MODIFIER
  mutpeak config get caller.backend                  # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigKeysCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List known configuration keys",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			keys := viper.AllKeys()
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}
}

func runConfigShow(w io.Writer) error {
	if f := viper.ConfigFileUsed(); f != "" {
		if _, err := os.Stat(f); err == nil {
			fmt.Fprintf(w, "# Config file: %s\n", f)
		} else {
			fmt.Fprintf(w, "# No config file yet (%s); showing defaults\n", f)
		}
	}

	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// parseValue converts a command-line value to the type stored for key.
func parseValue(key, value string) any {
	if listKeys[key] {
		if value == "" {
			return []string{}
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	switch value {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return value
}

func runConfigSet(w io.Writer, key, value string) error {
	key = strings.ToLower(key)
	viper.Set(key, parseValue(key, value))

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".mutpeak.yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(w io.Writer, key string) error {
	if !viper.IsSet(key) {
		return fmt.Errorf("key %q is not set", key)
	}
	switch val := viper.Get(key).(type) {
	case []string, []any:
		fmt.Fprintln(w, strings.Join(viper.GetStringSlice(key), ","))
	default:
		fmt.Fprintln(w, val)
	}
	return nil
}
