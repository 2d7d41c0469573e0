package main

import (
	"errors"
	"strings"

	"github.com/aretw0/desops"
	"github.com/aretw0/desops/internal/cli"
	"github.com/aretw0/desops/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <plant>",
	Short: "Run several analyses on one plant concurrently",
	Long: `Runs supervisor synthesis (--spec), current-state opacity (--secret) and
diagnosability (--diagnose) side by side. The first failing analysis stops
the others.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specPath, _ := cmd.Flags().GetString("spec")
		secret, _ := cmd.Flags().GetStringSlice("secret")
		observable, _ := cmd.Flags().GetStringSlice("observable")
		diagnose, _ := cmd.Flags().GetBool("diagnose")
		if specPath == "" && len(secret) == 0 && !diagnose {
			return errors.New("nothing to run: pass --spec, --secret or --diagnose")
		}

		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		ctx := cmd.Context()
		eng := setup.Engine
		req := desops.Request{Observable: observable, Diagnose: diagnose}
		if req.Plant, err = cli.ReadAutomaton(ctx, eng, args[0]); err != nil {
			return err
		}
		if specPath != "" {
			if req.Spec, err = cli.ReadAutomaton(ctx, eng, specPath); err != nil {
				return err
			}
		}
		if req.Secret, err = cli.ResolveStates(req.Plant, secret); err != nil {
			return err
		}

		sum, err := eng.RunAll(ctx, req)
		if err != nil {
			return err
		}

		report := &tui.Report{Title: "Analysis summary", OK: true}
		var failed []string
		if s := sum.Synthesis; s != nil {
			report.Add("supervisor exists", s.Exists)
			if s.Exists {
				report.Add("supervisor states", len(s.Supervisor.States))
			} else {
				failed = append(failed, "synthesis")
			}
		}
		if o := sum.Opacity; o != nil {
			report.Add("opaque", o.Opaque)
			if !o.Opaque {
				report.Add("revealing observation", o.Witness)
				failed = append(failed, "opacity")
			}
		}
		if d := sum.Diagnosability; d != nil {
			report.Add("diagnosable", d.Diagnosable)
			if !d.Diagnosable {
				report.Add("undiagnosable fault", d.Fault)
				failed = append(failed, "diagnosability")
			}
		}
		report.Add("duration", sum.Duration)
		report.Verdict = "all checks passed"
		if len(failed) > 0 {
			report.OK = false
			report.Verdict = "failed: " + strings.Join(failed, ", ")
		}
		return cli.Emit(cmd.OutOrStdout(), jsonOutput(cmd), report, sum)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("spec", "", "Specification for supervisor synthesis")
	runCmd.Flags().StringSlice("secret", nil, "Secret state names for current-state opacity")
	runCmd.Flags().StringSlice("observable", nil, "Observable event names for opacity (default: as declared)")
	runCmd.Flags().Bool("diagnose", false, "Check diagnosability")
}
