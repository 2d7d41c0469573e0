package main

import (
	"github.com/aretw0/desops/internal/cli"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert an automaton between YAML, JSON and .fsm",
	Long: `Reads <in> and writes it to <out>, each in the format its extension names.
Either may be - for stdin or stdout (YAML). The .fsm format cannot express
fault labels, probabilities or events without transitions; such automata are
rejected instead of written partially.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		ctx := cmd.Context()
		a, err := cli.ReadAutomaton(ctx, setup.Engine, args[0])
		if err != nil {
			return err
		}
		return cli.WriteAutomaton(ctx, setup.Engine, args[1], cmd.OutOrStdout(), a)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
