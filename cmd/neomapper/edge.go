package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saulfrancisco-ruizacevedo/go-neomapper"
)

var (
	createDirection string
	listDirection   string
	deleteDirection string
	edgeType        string
	edgeEnd         int64
	edgeProps       []string
)

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "Create, list and delete relationships",
}

var edgeCreateCmd = &cobra.Command{
	Use:     "create <start> <type> <end>",
	Short:   "Create a relationship between two nodes",
	Example: `  neomapper edge create 1 FOLLOWS 2 --prop since=2024`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		end, err := parseIdentity(args[2])
		if err != nil {
			return err
		}
		direction, err := neomapper.ParseDirection(createDirection)
		if err != nil {
			return err
		}
		props, err := parseProps(edgeProps, nil)
		if err != nil {
			return err
		}
		pm, closeFn, err := openManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		e, err := pm.Edges().Relate(cmd.Context(), args[1],
			neomapper.EntityRef(start), neomapper.EntityRef(end), direction, props)
		if err != nil {
			return err
		}
		return printJSON(cmd, e)
	},
}

var edgeListCmd = &cobra.Command{
	Use:   "list <start>",
	Short: "List the relationships of a node",
	Long: `List the relationships of one type around a node. With no --direction
each relationship reports the direction it is stored with relative to
<start>.`,
	Example: `  neomapper edge list 1 --type FOLLOWS --direction in`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		direction, err := neomapper.ParseDirection(listDirection)
		if err != nil {
			return err
		}
		q := neomapper.EdgeQuery{
			Type:      edgeType,
			Direction: direction,
			Start:     neomapper.EntityRef(start),
		}
		if cmd.Flags().Changed("end") {
			q.End = neomapper.EntityRef(edgeEnd)
		}

		pm, closeFn, err := openManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		cursor, err := pm.Edges().FetchAll(cmd.Context(), q)
		if err != nil {
			return err
		}
		edges, err := cursor.Collect()
		if err != nil {
			return err
		}
		if edges == nil {
			edges = []*neomapper.Edge{}
		}
		return printJSON(cmd, edges)
	},
}

var edgeDeleteCmd = &cobra.Command{
	Use:   "delete <start> <type> <end>",
	Short: "Delete the relationships of a type between two nodes",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		end, err := parseIdentity(args[2])
		if err != nil {
			return err
		}
		direction, err := neomapper.ParseDirection(deleteDirection)
		if err != nil {
			return err
		}
		pm, closeFn, err := openManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		e := pm.NewEdge(args[1], neomapper.EntityRef(start), neomapper.EntityRef(end))
		e.Direction = direction
		deleted, err := pm.Edges().Delete(cmd.Context(), e)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d relationship(s) deleted\n", deleted)
		return nil
	},
}

func init() {
	edgeCreateCmd.Flags().StringVarP(&createDirection, "direction", "d", "out", "out or in, relative to <start>")
	edgeCreateCmd.Flags().StringArrayVarP(&edgeProps, "prop", "p", nil, "property as key=value, repeatable")

	edgeListCmd.Flags().StringVarP(&edgeType, "type", "t", "", "relationship type")
	edgeListCmd.Flags().StringVarP(&listDirection, "direction", "d", "any", "out, in or any")
	edgeListCmd.Flags().Int64Var(&edgeEnd, "end", 0, "only relationships reaching this node")
	_ = edgeListCmd.MarkFlagRequired("type")

	edgeDeleteCmd.Flags().StringVarP(&deleteDirection, "direction", "d", "out", "out, in or any")

	edgeCmd.AddCommand(edgeCreateCmd)
	edgeCmd.AddCommand(edgeListCmd)
	edgeCmd.AddCommand(edgeDeleteCmd)
}
