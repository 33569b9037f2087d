/*
Copyright © 2025 Newsroom Authors
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsroom/internal/config"
	"newsroom/internal/fetch"
	"newsroom/internal/llm"
	"newsroom/internal/pipeline"
	"newsroom/internal/store"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "newsroom",
	Short: "Curate and publish topical newsletters through a phased pipeline",
	Long: `newsroom discovers candidate articles from feeds and index pages,
screens and ranks them with an LLM, and assembles the survivors into a
newsletter. Each run advances through a fixed sequence of guarded phases
that can be retried or resumed individually.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./newsroom.yaml)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.NewStore(cfg.App.DataDir)
}

func buildPipeline(ctx context.Context, cfg *config.Config, s *store.Store) (*pipeline.Pipeline, error) {
	client, err := llm.NewClient(ctx, cfg.Gemini.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	p := pipeline.New(s, client, fetch.NewClient(cfg.Fetch.Timeout, cfg.Fetch.UserAgent))
	if cfg.Pipeline.FetchWorkers > 0 {
		p.FetchWorkers = cfg.Pipeline.FetchWorkers
	}
	if cfg.Pipeline.LLMWorkers > 0 {
		p.LLMWorkers = cfg.Pipeline.LLMWorkers
	}
	return p, nil
}
