package main

import (
	"github.com/saulfrancisco-ruizacevedo/gocypher"
	"github.com/spf13/cobra"
)

var (
	graphType   string
	graphTarget string
	graphProps  []string
)

var graphCmd = &cobra.Command{
	Use:   "graph <label>",
	Short: "Print the nodes of a label and their relationships as a graph",
	Long: `Match the nodes carrying <label>, optionally narrowed by --prop, follow
their outgoing relationships of --type and print every node and
relationship found as a {nodes, edges} document.`,
	Example: `  neomapper graph User --prop name=Alice --type WROTE --target Post`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := parseProps(graphProps, nil)
		if err != nil {
			return err
		}
		pm, closeFn, err := openManager(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		qb := gocypher.NewQueryBuilder().
			Match(gocypher.N("u", args[0]).WithProperties(map[string]any(props))).
			Match(
				gocypher.NRef("u"),
				gocypher.R("r", graphType).To(),
				gocypher.N("p", graphTarget),
			).
			Return("u", "r", "p")

		g, err := pm.FindGraph(cmd.Context(), qb)
		if err != nil {
			return err
		}
		return printJSON(cmd, g)
	},
}

func init() {
	graphCmd.Flags().StringVarP(&graphType, "type", "t", "", "relationship type to follow")
	graphCmd.Flags().StringVar(&graphTarget, "target", "", "label of the related nodes")
	graphCmd.Flags().StringArrayVarP(&graphProps, "prop", "p", nil, "property of the root nodes as key=value, repeatable")
	_ = graphCmd.MarkFlagRequired("type")
	_ = graphCmd.MarkFlagRequired("target")
}
