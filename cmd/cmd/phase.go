/*
Copyright © 2025 Newsroom Authors
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsroom/internal/core"
	"newsroom/internal/pipeline"
)

var (
	phaseRunID  string
	phaseRunAll bool
)

var phaseCmd = &cobra.Command{
	Use:   "phase <phase-name>",
	Short: "Execute one pipeline phase (or the rest of the pipeline with --all)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := core.PhaseName(args[0])
		if !core.ValidPhase(name) {
			return fmt.Errorf("unknown phase %q", name)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		p, err := buildPipeline(cmd.Context(), cfg, s)
		if err != nil {
			return err
		}

		var results []*pipeline.Result
		if phaseRunAll {
			results, err = p.RunFrom(cmd.Context(), phaseRunID, name)
		} else {
			var res *pipeline.Result
			res, err = p.RunPhase(cmd.Context(), phaseRunID, name)
			if res != nil {
				results = []*pipeline.Result{res}
			}
		}

		for _, res := range results {
			status := string(res.Status)
			if res.AlreadyDone {
				status += " (already done)"
			}
			fmt.Printf("%-28s %s\n", res.Phase, status)
			if res.Logs != "" {
				fmt.Println(res.Logs)
			}
		}
		return err
	},
}

func init() {
	phaseCmd.Flags().StringVar(&phaseRunID, "run", "", "run ID (required)")
	phaseCmd.Flags().BoolVar(&phaseRunAll, "all", false, "run from this phase to the end of the pipeline")
	_ = phaseCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(phaseCmd)
}
