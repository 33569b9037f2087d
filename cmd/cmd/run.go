/*
Copyright © 2025 Newsroom Authors
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"newsroom/internal/core"
	"newsroom/internal/export"
)

var (
	runName         string
	runTopic        string
	runKeywords     []string
	runSourceURLs   []string
	runSpecificURLs []string
	runLookbackDays int
	runMode         string
	runMinFitScore  float64
	runMaxTotal     int
	runMaxPerDomain int
	runNoRanking    bool
	runProfileID    string
	runExportAsJSON bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Manage newsletter runs",
}

var runCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		if runTopic == "" && len(runKeywords) == 0 && len(runSourceURLs) == 0 && len(runSpecificURLs) == 0 {
			return fmt.Errorf("a topic, keywords, or URLs are required")
		}

		run := &core.Run{
			Name:             runName,
			Topic:            runTopic,
			Keywords:         runKeywords,
			SourceURLs:       runSourceURLs,
			SpecificURLs:     runSpecificURLs,
			LookbackDays:     runLookbackDays,
			Mode:             core.RunMode(runMode),
			MinFitScore:      runMinFitScore,
			MaxTotalArticles: runMaxTotal,
			MaxPerDomain:     runMaxPerDomain,
			RankingEnabled:   !runNoRanking,
			ProfileID:        runProfileID,
		}

		if run.ProfileID != "" {
			profile, err := s.GetProfile(run.ProfileID)
			if err != nil {
				return fmt.Errorf("failed to load profile: %w", err)
			}
			if len(run.SourceURLs) == 0 {
				run.SourceURLs = profile.DefaultSourceURLs
			}
			if len(run.Keywords) == 0 {
				run.Keywords = profile.DefaultKeywords
			}
		}

		if err := s.CreateRun(run); err != nil {
			return err
		}
		fmt.Printf("Created run %s\n", run.ID)
		return nil
	},
}

var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		runs, err := s.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs yet.")
			return nil
		}
		for _, run := range runs {
			name := run.Name
			if name == "" {
				name = run.Topic
			}
			fmt.Printf("%s  %-10s  %s\n", run.ID, run.Status, name)
		}
		return nil
	},
}

var runShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its phases and articles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		if runExportAsJSON {
			data, err := export.RunJSON(s, args[0])
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		exp, err := export.BuildRunExport(s, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Run %s (%s)\n", exp.Run.ID, exp.Run.Status)
		fmt.Printf("Topic: %s\n", exp.Run.Topic)
		if len(exp.Run.Keywords) > 0 {
			fmt.Printf("Keywords: %s\n", strings.Join(exp.Run.Keywords, ", "))
		}
		fmt.Println("\nPhases:")
		for _, phase := range exp.Phases {
			fmt.Printf("  %-28s %s\n", phase.Name, phase.Status)
		}
		fmt.Printf("\nArticles: %d (%d newsletters)\n", len(exp.Articles), len(exp.Newsletters))
		for _, a := range exp.Articles {
			marks := ""
			if a.IsDuplicate {
				marks += " [dup]"
			}
			if !a.IsKept {
				marks += " [dropped]"
			}
			fmt.Printf("  %s%s\n", a.URL, marks)
		}
		return nil
	},
}

func init() {
	runCreateCmd.Flags().StringVar(&runName, "name", "", "run name")
	runCreateCmd.Flags().StringVar(&runTopic, "topic", "", "newsletter topic")
	runCreateCmd.Flags().StringSliceVar(&runKeywords, "keyword", nil, "search keyword (repeatable)")
	runCreateCmd.Flags().StringSliceVar(&runSourceURLs, "source-url", nil, "feed or index page URL (repeatable)")
	runCreateCmd.Flags().StringSliceVar(&runSpecificURLs, "specific-url", nil, "article URL to use verbatim (repeatable)")
	runCreateCmd.Flags().IntVar(&runLookbackDays, "lookback", 7, "how many days back feed items may be")
	runCreateCmd.Flags().StringVar(&runMode, "mode", string(core.ModeAuto), "run mode: auto or guided")
	runCreateCmd.Flags().Float64Var(&runMinFitScore, "min-fit-score", 6.0, "minimum ranking score to shortlist")
	runCreateCmd.Flags().IntVar(&runMaxTotal, "max-total", 12, "maximum articles in the newsletter")
	runCreateCmd.Flags().IntVar(&runMaxPerDomain, "max-per-domain", 4, "maximum articles per domain")
	runCreateCmd.Flags().BoolVar(&runNoRanking, "no-ranking", false, "skip the ranking phase")
	runCreateCmd.Flags().StringVar(&runProfileID, "profile", "", "profile ID to inherit defaults from")

	runShowCmd.Flags().BoolVar(&runExportAsJSON, "json", false, "print the full run export as JSON")

	runCmd.AddCommand(runCreateCmd)
	runCmd.AddCommand(runListCmd)
	runCmd.AddCommand(runShowCmd)
	rootCmd.AddCommand(runCmd)
}
