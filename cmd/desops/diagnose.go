package main

import (
	"github.com/aretw0/desops/internal/cli"
	"github.com/aretw0/desops/internal/presentation/graph"
	"github.com/aretw0/desops/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <plant>",
	Short: "Check whether every fault is diagnosable",
	Long: `Decides whether each fault label of the plant is detected within a bounded
number of observable events. A failing label is reported with the prefix
and cycle of an indeterminate run. --diagram prints the diagnoser instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		ctx := cmd.Context()
		eng := setup.Engine
		plant, err := cli.ReadAutomaton(ctx, eng, args[0])
		if err != nil {
			return err
		}

		v, err := eng.Diagnosable(ctx, plant)
		if err != nil {
			return err
		}
		report := &tui.Report{Title: "Diagnosability", OK: v.Diagnosable, Verdict: "diagnosable"}
		if !v.Diagnosable {
			report.Verdict = "not diagnosable"
			report.Add("fault", v.Fault).Add("prefix", v.Prefix).Add("cycle", v.Cycle)
		}
		report.Add("twin states", v.TwinStates)

		if diagram, _ := cmd.Flags().GetBool("diagram"); diagram {
			d, err := eng.Diagnoser(ctx, plant)
			if err != nil {
				return err
			}
			report.Add("diagnoser states", d.Automaton.NumStates())
			report.Diagram = graph.GenerateMermaid(d.Automaton, graph.NoOverlay)
		}
		return cli.Emit(cmd.OutOrStdout(), jsonOutput(cmd), report, v)
	},
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
	diagnoseCmd.Flags().Bool("diagram", false, "Append a Mermaid diagram of the diagnoser")
}
