package main

import (
	"fmt"
	"os"

	"github.com/aretw0/desops/internal/cli"
	"github.com/aretw0/desops/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var reachCmd = &cobra.Command{
	Use:   "reach <file.fsm>",
	Short: "Count reachable and trim states of an .fsm file on BDDs",
	Long: `Streams an .fsm file into a BDD encoding and computes its reachable and
trim state sets symbolically. The explicit automaton is never built, so this
works on files too large for the other commands. Use - for stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		in := cmd.InOrStdin()
		if args[0] != cli.Stdio {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		st, err := setup.Engine.StructureFSM(cmd.Context(), in)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		report := &tui.Report{Title: "Symbolic reachability", OK: st.Trim == st.States, Verdict: "trim"}
		if st.Trim != st.States {
			report.Verdict = "not trim"
		}
		report.Add("states", st.States).Add("reachable", st.Reachable).Add("trim", st.Trim).Add("BDD nodes", st.BDDNodes)
		return cli.Emit(cmd.OutOrStdout(), jsonOutput(cmd), report, st)
	},
}

func init() {
	rootCmd.AddCommand(reachCmd)
}
