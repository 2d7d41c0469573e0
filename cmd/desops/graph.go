package main

import (
	"fmt"

	"github.com/aretw0/desops/internal/cli"
	"github.com/aretw0/desops/internal/presentation/graph"
	"github.com/aretw0/desops/pkg/automaton"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <file>",
	Short: "Export the automaton as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart (graph LR) of the automaton. Marked states are
drawn as double circles, uncontrollable events as dotted arrows and
unobservable events in parentheses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		a, err := cli.ReadAutomaton(cmd.Context(), setup.Engine, args[0])
		if err != nil {
			return err
		}
		names, _ := cmd.Flags().GetStringSlice("highlight")
		highlight, err := cli.ResolveStates(a, names)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(a, graph.Overlay{Highlight: highlight, Current: automaton.NoState}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringSlice("highlight", nil, "State names to highlight")
}
