package main

import (
	"fmt"
	"os"

	"github.com/aretw0/desops/internal/cli"
	"github.com/aretw0/desops/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "desops",
	Short: "desops analyzes discrete-event systems",
	Long: `desops loads finite automata from YAML, JSON or .fsm files and runs the
classic discrete-event system analyses on them: supervisor synthesis,
controllability, opacity, diagnosability, equivalence and minimization.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides the config file)")
	rootCmd.PersistentFlags().Int("max-states", 0, "Maximum states an analysis may expand (0 keeps the config value)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Wall-clock limit per analysis (0 keeps the config value)")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON instead of a report")
}

// newSetup builds the engine from the config file and the persistent flags.
// reg may be nil when the command exposes no metrics.
func newSetup(cmd *cobra.Command, reg prometheus.Registerer) (*cli.Setup, error) {
	path, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")
	maxStates, _ := cmd.Flags().GetInt("max-states")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	return cli.NewSetup(cmd.Context(), cli.Options{
		ConfigPath: path,
		LogLevel:   level,
		MaxStates:  maxStates,
		Timeout:    timeout,
		LogOutput:  cmd.ErrOrStderr(),
		Metrics:    reg,
	})
}

func jsonOutput(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}
