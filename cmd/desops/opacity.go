package main

import (
	"errors"

	"github.com/aretw0/desops/internal/cli"
	"github.com/aretw0/desops/internal/presentation/graph"
	"github.com/aretw0/desops/internal/presentation/tui"
	"github.com/aretw0/desops/pkg/automaton"
	"github.com/aretw0/desops/pkg/opacity"
	"github.com/spf13/cobra"
)

// opacityResult is opacity.Verdict with state names instead of ids.
type opacityResult struct {
	Opaque         bool     `json:"opaque"`
	Witness        []string `json:"witness,omitempty"`
	Estimate       []string `json:"estimate,omitempty"`
	ObserverStates int      `json:"observer_states"`
}

var opacityCmd = &cobra.Command{
	Use:   "opacity <plant>",
	Short: "Check whether an observer can learn a secret",
	Long: `Checks current-state opacity against the states named by --secret, or
language-based opacity against the marked language of --secret-spec.
--observable replaces the observability declared on the events.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetStringSlice("secret")
		secretSpec, _ := cmd.Flags().GetString("secret-spec")
		observable, _ := cmd.Flags().GetStringSlice("observable")
		if (len(secret) == 0) == (secretSpec == "") {
			return errors.New("exactly one of --secret and --secret-spec is required")
		}

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

		var (
			v         *opacity.Verdict
			secretIDs automaton.StateSet
			title     string
		)
		if secretSpec != "" {
			title = "Language opacity"
			spec, err := cli.ReadAutomaton(ctx, eng, secretSpec)
			if err != nil {
				return err
			}
			v, err = eng.LanguageOpacity(ctx, plant, spec, observable...)
			if err != nil {
				return err
			}
		} else {
			title = "Current-state opacity"
			secretIDs, err = cli.ResolveStates(plant, secret)
			if err != nil {
				return err
			}
			v, err = eng.CurrentStateOpacity(ctx, plant, secretIDs, observable...)
			if err != nil {
				return err
			}
		}

		res := opacityResult{Opaque: v.Opaque, Witness: v.Witness, ObserverStates: v.ObserverStates}
		report := &tui.Report{Title: title, OK: v.Opaque, Verdict: "opaque"}
		if !v.Opaque {
			report.Verdict = "secret revealed"
			report.Add("observation", v.Witness)
			// The estimate of a language check is over product states.
			if secretSpec == "" {
				res.Estimate = cli.StateNames(plant, v.Estimate)
				report.Add("estimate", res.Estimate)
			}
		}
		report.Add("observer states", v.ObserverStates)
		if diagram, _ := cmd.Flags().GetBool("diagram"); diagram {
			report.Diagram = graph.GenerateMermaid(plant, graph.Overlay{Highlight: secretIDs, Current: automaton.NoState})
		}
		return cli.Emit(cmd.OutOrStdout(), jsonOutput(cmd), report, res)
	},
}

func init() {
	rootCmd.AddCommand(opacityCmd)
	opacityCmd.Flags().StringSlice("secret", nil, "Secret state names")
	opacityCmd.Flags().String("secret-spec", "", "Automaton whose marked language is secret")
	opacityCmd.Flags().StringSlice("observable", nil, "Observable event names (default: as declared)")
	opacityCmd.Flags().Bool("diagram", false, "Append a Mermaid diagram with the secret states highlighted")
}
