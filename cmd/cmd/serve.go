/*
Copyright © 2025 Newsroom Authors
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"newsroom/internal/logger"
	"newsroom/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP API",
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

		p, err := buildPipeline(cmd.Context(), cfg, s)
		if err != nil {
			return err
		}

		srv := server.NewServer(cfg, s, p)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
