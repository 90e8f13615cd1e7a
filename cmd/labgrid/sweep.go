package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/svc/trialsweep"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Downgrade expired trial and prepaid accounts once and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Log)

			a, err := newApp(cmd.Context(), cfg, log)
			defer func() {
				if err := a.Close(context.WithoutCancel(cmd.Context())); err != nil {
					log.ErrorContext(cmd.Context(), "failed to close backends", logger.Error(err))
				}
			}()
			if err != nil {
				return err
			}

			report, err := a.sweeper.Sweep(cmd.Context(), trialsweep.TriggerCLI)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
