package main

import (
	"fmt"

	"github.com/aretw0/desops/internal/cli"
	"github.com/spf13/cobra"
)

// storeCmd groups the commands that manage the configured automaton store.
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage automata in the configured store",
	Long: `Lists, saves, reads and deletes automata kept in the store selected by the
config file (store.backend: memory or redis). The memory backend only lives
as long as the process, so these commands are mostly useful with redis.`,
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored automaton ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		ids, err := setup.Engine.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var storePutCmd = &cobra.Command{
	Use:   "put <id> <file>",
	Short: "Validate a file and store it under id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		a, err := cli.ReadAutomaton(cmd.Context(), setup.Engine, args[1])
		if err != nil {
			return err
		}
		if err := setup.Engine.Put(cmd.Context(), args[0], a); err != nil {
			return err
		}
		cli.PrintSystemMessage(cmd.ErrOrStderr(), "Stored '%s'.", args[0])
		return nil
	},
}

var storeGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a stored automaton",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		a, err := setup.Engine.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("output")
		return cli.WriteAutomaton(cmd.Context(), setup.Engine, out, cmd.OutOrStdout(), a)
	},
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored automaton",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		if err := setup.Engine.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSystemMessage(cmd.ErrOrStderr(), "Deleted '%s'.", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeListCmd, storePutCmd, storeGetCmd, storeDeleteCmd)
	storeGetCmd.Flags().StringP("output", "o", cli.Stdio, "Output file (- for stdout)")
}
