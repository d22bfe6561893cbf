package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zedloc/zed-updater/settings"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
	}
	cmd.AddCommand(newConfigShowCmd(opts))
	cmd.AddCommand(newConfigGetCmd(opts))
	cmd.AddCommand(newConfigSetCmd(opts))
	cmd.AddCommand(newConfigValidateCmd(opts))
	cmd.AddCommand(newConfigResetCmd(opts))
	cmd.AddCommand(newConfigPathCmd(opts))
	return cmd
}

func newConfigShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the whole configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(store.Snapshot(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigGetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "get <key>",
		Short:             "Print one configuration value",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkKey(args[0]); err != nil {
				return err
			}
			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			if _, isList := settings.Defaults()[args[0]].([]string); isList {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(store.GetStringSlice(args[0]), ","))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), store.Get(args[0]))
			return nil
		},
	}
}

func newConfigSetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one configuration value",
		Long: `Change one configuration value. Booleans accept true/false, lists are comma separated.
A value making the configuration invalid is refused.`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := checkKey(key); err != nil {
				return err
			}
			value, err := parseValue(key, args[1])
			if err != nil {
				return err
			}
			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			previous := store.Get(key)
			if err := store.Set(key, value); err != nil {
				return err
			}
			if problem, found := store.Validate()[key]; found {
				if err := store.Set(key, previous); err != nil {
					return err
				}
				return fmt.Errorf("invalid value for %s: %s", key, problem)
			}
			return nil
		},
	}
}

func newConfigValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			problems := store.Validate()
			if len(problems) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
				return nil
			}
			for _, key := range slices.Sorted(maps.Keys(problems)) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, problems[key])
			}
			return fmt.Errorf("%d problem(s) found in %s", len(problems), store.Path())
		},
	}
}

func newConfigResetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			return store.Reset()
		},
	}
}

func newConfigPathCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the location of the configuration file",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), opts.configPath)
		},
	}
}

func checkKey(key string) error {
	if _, known := settings.Defaults()[key]; !known {
		return fmt.Errorf("unknown configuration key %q", key)
	}
	return nil
}

// parseValue converts the command line text to the type of the default value.
func parseValue(key, text string) (any, error) {
	switch settings.Defaults()[key].(type) {
	case bool:
		value, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false", key)
		}
		return value, nil
	case int:
		value, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("%s expects an integer", key)
		}
		return value, nil
	case float64:
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%s expects a number", key)
		}
		return value, nil
	case []string:
		list := []string{}
		for _, item := range strings.Split(text, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
		return list, nil
	case string:
		return text, nil
	default:
		return nil, errors.New("unsupported value type")
	}
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return slices.Sorted(maps.Keys(settings.Defaults())), cobra.ShellCompDirectiveNoFileComp
}
