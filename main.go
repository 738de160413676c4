package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"citybike-sync/browser"
	"citybike-sync/config"
	"citybike-sync/scraper/hsl"
	"citybike-sync/services"
	"citybike-sync/submitter/kilometrikisa"
	"citybike-sync/utils"
)

func main() {
	logger := utils.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		logger.Error("%v", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(logger *utils.Logger) *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:           "citybike-sync",
		Short:         "Copies this month's city bike rides into Kilometrikisa as daily totals.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.Headless = headless
			}
			logger.SetDebug(cfg.Debug)

			logger.Info("=== City bike → Kilometrikisa sync starting ===")
			logger.Info("Config: headless: %t | concurrency: %d | settle: %v | exclude today: %t",
				cfg.Headless, cfg.MaxConcurrency, cfg.SettleDelay, cfg.ExcludeToday)

			pipeline := &services.Pipeline{
				Launch: func(ctx context.Context) (services.Session, error) {
					return browser.Launch(ctx, browser.Options{
						Headless:          cfg.Headless,
						ChromeBin:         cfg.ChromeBin,
						Width:             1024,
						Height:            768,
						SlowMo:            cfg.SlowMo,
						NavigationTimeout: cfg.NavigationTimeout,
					}, logger)
				},
				Source:       hsl.New(cfg, logger),
				Sink:         kilometrikisa.New(cfg, logger),
				Summary:      services.NewSummaryService(logger),
				Logger:       logger,
				ExcludeToday: cfg.ExcludeToday,
			}
			if err := pipeline.Run(cmd.Context()); err != nil {
				return err
			}

			logger.Info("Done.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window (default from HEADLESS)")
	return cmd
}
