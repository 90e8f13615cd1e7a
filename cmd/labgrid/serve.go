package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/labgrid/pkg/httpserver"
	"github.com/dmitrymomot/labgrid/pkg/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when configured, the trial sweep ticker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	a, err := newApp(ctx, cfg, log)
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			log.ErrorContext(ctx, "failed to close backends", logger.Error(err))
		}
	}()
	if err != nil {
		return err
	}

	router, err := a.newRouter()
	if err != nil {
		return err
	}
	server := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, router)
	})
	if cfg.Sweep.Interval > 0 {
		g.Go(func() error {
			log.InfoContext(ctx, "trial sweep ticker started", logger.Duration(cfg.Sweep.Interval))
			return a.sweeper.Run(ctx, cfg.Sweep.Interval)
		})
	}
	return g.Wait()
}
