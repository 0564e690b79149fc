package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/eventwave/internal/api"
	"example.com/eventwave/internal/monitor"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var withMonitor bool

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server that serves nearby events and browsing state`,
	RunE:  runAPI,
}

func init() {
	apiCmd.Flags().BoolVar(&withMonitor, "with-monitor", false, "also run the proximity monitor in this process")
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	browser, err := a.newBrowser(ctx)
	if err != nil {
		return err
	}

	server := api.NewServer(a.cfg, a.service, browser, a.prefs, a.metrics, a.tracer)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	if withMonitor {
		providers, err := monitor.NewProvidersFromConfig(a.cfg.Monitor, a.prefs)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		m := monitor.New(a.events, a.prefs, providers, a.notifier, a.metrics, a.tracer, a.cfg.Monitor.Interval)
		g.Go(func() error {
			if err := m.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return m.Stop()
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("API server error")
		return err
	}

	log.Info().Msg("API server stopped")
	return nil
}
