package main

import (
	"fmt"

	"github.com/aretw0/desops/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check automaton files for consistency",
	Long: `Loads each file and reports unknown states or events, conflicting event
attributes, nondeterminism in DFAs and broken probability distributions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		for _, path := range args {
			a, err := cli.ReadAutomaton(cmd.Context(), setup.Engine, path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %d states, %d transitions) is valid! ✅\n",
				path, a.Kind(), a.NumStates(), a.NumTransitions())

			if symbolic, _ := cmd.Flags().GetBool("symbolic"); symbolic {
				st, err := setup.Engine.Structure(cmd.Context(), a)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  reachable %d, trim %d (%d BDD nodes)\n", st.Reachable, st.Trim, st.BDDNodes)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("symbolic", false, "Also report reachable and trim state counts computed on BDDs")
}
