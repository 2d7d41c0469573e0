package main

import (
	"errors"

	"github.com/aretw0/desops"
	"github.com/aretw0/desops/internal/cli"
	"github.com/aretw0/desops/internal/presentation/graph"
	"github.com/aretw0/desops/internal/presentation/tui"
	"github.com/aretw0/desops/pkg/domain"
	"github.com/aretw0/desops/pkg/schema"
	"github.com/aretw0/desops/pkg/supervisor"
	"github.com/spf13/cobra"
)

var synthCmd = &cobra.Command{
	Use:   "synth <plant> <spec>",
	Short: "Synthesize the maximally permissive supervisor",
	Long: `Computes the supremal controllable, nonblocking sublanguage of the
specification with respect to the plant and prints the resulting supervisor.
With --check only the controllability of the specification is tested.

With --partial the supervisor sees only observable events and the result is
the supremal controllable and normal sublanguage. --observable replaces the
observability declared on the events and implies --partial.`,
	Args: cobra.ExactArgs(2),
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
		spec, err := cli.ReadAutomaton(ctx, eng, args[1])
		if err != nil {
			return err
		}

		if check, _ := cmd.Flags().GetBool("check"); check {
			c, err := eng.Controllable(ctx, plant, spec)
			if err != nil {
				return err
			}
			report := &tui.Report{Title: "Controllability", OK: c.Controllable, Verdict: "controllable"}
			if !c.Controllable {
				report.Verdict = "not controllable"
				report.Add("trace", c.Trace).Add("event", c.Event).Add("plant state", c.PlantState)
			}
			return cli.Emit(cmd.OutOrStdout(), jsonOutput(cmd), report, c)
		}

		var res *supervisor.Result
		observable, _ := cmd.Flags().GetStringSlice("observable")
		if partial, _ := cmd.Flags().GetBool("partial"); partial || len(observable) > 0 {
			res, err = eng.SynthesizeObserved(ctx, plant, spec, observable...)
		} else {
			res, err = eng.Synthesize(ctx, plant, spec)
		}
		if errors.Is(err, domain.ErrNoSupervisorExists) {
			report := &tui.Report{Title: "Supervisor synthesis", Verdict: "no supervisor exists"}
			return cli.Emit(cmd.OutOrStdout(), jsonOutput(cmd), report, &desops.Synthesis{})
		}
		if err != nil {
			return err
		}

		if out, _ := cmd.Flags().GetString("output"); out != "" {
			if err := cli.WriteAutomaton(ctx, eng, out, cmd.OutOrStdout(), res.Supervisor); err != nil {
				return err
			}
			if out == cli.Stdio {
				return nil
			}
		}

		report := (&tui.Report{Title: "Supervisor synthesis", OK: true, Verdict: "supervisor found"}).
			Add("states", res.Supervisor.NumStates()).
			Add("transitions", res.Supervisor.NumTransitions()).
			Add("iterations", res.Iterations).
			Add("removed", res.Removed)
		if diagram, _ := cmd.Flags().GetBool("diagram"); diagram {
			report.Diagram = graph.GenerateMermaid(res.Supervisor, graph.NoOverlay)
		}
		return cli.Emit(cmd.OutOrStdout(), jsonOutput(cmd), report, &desops.Synthesis{
			Exists:     true,
			Iterations: res.Iterations,
			Removed:    res.Removed,
			Supervisor: schema.FromAutomaton(res.Supervisor),
		})
	},
}

func init() {
	rootCmd.AddCommand(synthCmd)
	synthCmd.Flags().StringP("output", "o", "", "Write the supervisor to this file (- for stdout); the format follows the extension")
	synthCmd.Flags().Bool("check", false, "Only check whether the specification is controllable")
	synthCmd.Flags().Bool("diagram", false, "Append a Mermaid diagram of the supervisor")
	synthCmd.Flags().Bool("partial", false, "Synthesize for a supervisor that sees only observable events")
	synthCmd.Flags().StringSlice("observable", nil, "Observable event names (default: as declared)")
}
