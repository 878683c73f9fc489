package main

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"github.com/user/orderbot/internal/config"
)

func init() {
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the bot configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every key with credentials masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listConfig(loadConfig(), cmd.OutOrStdout())
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one value from the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write one value to the config file",
	Example: `  orderbot config set store.name "Pizzaria Bella"
  orderbot config set store.menu_refresh @hourly`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetValue(cfgPath, key, value); err != nil {
			return err
		}
		if config.IsSecretKey(key) {
			value = config.MaskSecrets(map[string]any{key: value})[key].(string)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the config can start the bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig().Validate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "config ok")
		return nil
	},
}

func listConfig(cfg *config.Config, out io.Writer) error {
	values, err := config.ListValues(cfg, true)
	if err != nil {
		return fmt.Errorf("list config: %w", err)
	}
	for _, k := range slices.Sorted(maps.Keys(values)) {
		fmt.Fprintf(out, "%s = %v\n", k, values[k])
	}
	return nil
}
