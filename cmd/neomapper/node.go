package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saulfrancisco-ruizacevedo/go-neomapper"
)

var (
	nodeLabels []string
	nodeProps  []string
	nodeUnset  []string
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Create, read, update and delete nodes",
}

var nodeCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a node",
	Example: `  neomapper node create --label User --prop name=Alice --prop age=30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := parseProps(nodeProps, nil)
		if err != nil {
			return err
		}
		pm, closeFn, err := openManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		e := pm.NewEntity(nodeLabels...)
		for k, v := range props {
			e.Set(k, v)
		}
		if err := pm.Entities().Save(cmd.Context(), e); err != nil {
			return err
		}
		return printJSON(cmd, e)
	},
}

var nodeGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		pm, closeFn, err := openManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		e, err := pm.GetEntity(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd, e)
	},
}

var nodeUpdateCmd = &cobra.Command{
	Use:     "update <id>",
	Short:   "Set or remove node properties",
	Example: `  neomapper node update 42 --prop email=alice@example.com --unset nickname`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		props, err := parseProps(nodeProps, nodeUnset)
		if err != nil {
			return err
		}
		pm, closeFn, err := openManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		e := neomapper.EntityRef(id)
		for k, v := range props {
			e.Set(k, v)
		}
		if err := pm.Entities().Save(cmd.Context(), e); err != nil {
			return err
		}
		if len(nodeLabels) > 0 {
			if err := pm.Entities().AddLabels(cmd.Context(), e, nodeLabels...); err != nil {
				return err
			}
		}

		updated, err := pm.GetEntity(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd, updated)
	},
}

var nodeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a node and its relationships",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		pm, closeFn, err := openManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		if err := pm.Entities().Delete(cmd.Context(), neomapper.EntityRef(id)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Node %d deleted\n", id)
		return nil
	},
}

func init() {
	nodeCreateCmd.Flags().StringArrayVarP(&nodeLabels, "label", "l", nil, "node label, repeatable")
	nodeCreateCmd.Flags().StringArrayVarP(&nodeProps, "prop", "p", nil, "property as key=value, repeatable")

	nodeUpdateCmd.Flags().StringArrayVarP(&nodeProps, "prop", "p", nil, "property to set as key=value, repeatable")
	nodeUpdateCmd.Flags().StringArrayVar(&nodeUnset, "unset", nil, "property to remove, repeatable")
	nodeUpdateCmd.Flags().StringArrayVarP(&nodeLabels, "label", "l", nil, "label to add, repeatable")

	nodeCmd.AddCommand(nodeCreateCmd)
	nodeCmd.AddCommand(nodeGetCmd)
	nodeCmd.AddCommand(nodeUpdateCmd)
	nodeCmd.AddCommand(nodeDeleteCmd)
}
