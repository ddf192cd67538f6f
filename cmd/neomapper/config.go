package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saulfrancisco-ruizacevedo/go-neomapper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with default settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "neomapper.yaml"
		if configPath != "" {
			path = configPath
		}
		if len(args) == 1 {
			path = args[0]
		}
		if err := neomapper.WriteConfig(path, neomapper.DefaultConfig()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := cfg
		if shown.Password != "" {
			shown.Password = "********"
		}
		return printJSON(cmd, shown)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
