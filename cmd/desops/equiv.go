package main

import (
	"github.com/aretw0/desops/internal/cli"
	"github.com/aretw0/desops/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var equivCmd = &cobra.Command{
	Use:   "equiv <left> <right>",
	Short: "Compare the marked languages of two automata",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		ctx := cmd.Context()
		eng := setup.Engine
		left, err := cli.ReadAutomaton(ctx, eng, args[0])
		if err != nil {
			return err
		}
		right, err := cli.ReadAutomaton(ctx, eng, args[1])
		if err != nil {
			return err
		}

		eq, err := eng.Equivalent(ctx, left, right)
		if err != nil {
			return err
		}
		report := &tui.Report{Title: "Language equivalence", OK: eq.Equal, Verdict: "equivalent"}
		if !eq.Equal {
			report.Verdict = "languages differ"
			report.Add("witness", eq.Witness).Add("accepted by", eq.AcceptedBy.String())
		}
		return cli.Emit(cmd.OutOrStdout(), jsonOutput(cmd), report, eq)
	},
}

func init() {
	rootCmd.AddCommand(equivCmd)
}
