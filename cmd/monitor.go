package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/eventwave/internal/monitor"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var monitorOnce bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Start the proximity monitor",
	Long:  `Periodically check stored events near the last known location and send a notification for each`,
	RunE:  runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "run a single check and exit")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	providers, err := monitor.NewProvidersFromConfig(a.cfg.Monitor, a.prefs)
	if err != nil {
		return err
	}
	m := monitor.New(a.events, a.prefs, providers, a.notifier, a.metrics, a.tracer, a.cfg.Monitor.Interval)

	if monitorOnce {
		sent, err := m.Tick(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("notified", sent).Msg("Proximity check complete")
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Dur("interval", a.cfg.Monitor.Interval).Msg("Starting proximity monitor")
		if err := m.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return m.Stop()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Monitor error")
		return err
	}

	log.Info().Msg("Monitor shutting down gracefully")
	return nil
}
