package main

import (
	"github.com/aretw0/desops/internal/cli"
	"github.com/spf13/cobra"
)

var minimizeCmd = &cobra.Command{
	Use:   "minimize <in>",
	Short: "Write the minimal DFA accepting the same marked language",
	Long: `Determinizes the input when needed, then merges equivalent states.
The result goes to --output, stdout by default, in the format its extension names.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		ctx := cmd.Context()
		eng := setup.Engine
		a, err := cli.ReadAutomaton(ctx, eng, args[0])
		if err != nil {
			return err
		}
		minimal, err := eng.Minimize(ctx, a)
		if err != nil {
			return err
		}
		eng.Logger().Info("minimized", "states", a.NumStates(), "minimal", minimal.NumStates())

		out, _ := cmd.Flags().GetString("output")
		return cli.WriteAutomaton(ctx, eng, out, cmd.OutOrStdout(), minimal)
	},
}

func init() {
	rootCmd.AddCommand(minimizeCmd)
	minimizeCmd.Flags().StringP("output", "o", cli.Stdio, "Output file (- for stdout)")
}
