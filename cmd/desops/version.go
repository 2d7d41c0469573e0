package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/desops"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of desops",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "desops version %s\n", strings.TrimSpace(desops.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
