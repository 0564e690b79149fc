package cmd

import (
	"context"
	"time"

	"example.com/eventwave/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	refreshLat     float64
	refreshLon     float64
	refreshTimeout time.Duration
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh stored events once",
	Long: `Fetch events around the given coordinates, or the last reported location
when none are given, and merge them into the local store`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().Float64Var(&refreshLat, "lat", 0, "latitude")
	refreshCmd.Flags().Float64Var(&refreshLon, "lon", 0, "longitude")
	refreshCmd.Flags().DurationVar(&refreshTimeout, "timeout", 2*time.Minute, "overall timeout")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	var loc *models.Location
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		loc = &models.Location{Latitude: refreshLat, Longitude: refreshLon}
	} else {
		fix, err := a.prefs.LastLocation(ctx)
		if err != nil {
			return err
		}
		if fix != nil {
			loc = &fix.Location
		}
	}

	st := a.service.Refresh(ctx, loc)
	if st.Error != "" {
		return errors.New(st.Error)
	}

	count, err := a.events.Count(ctx)
	if err != nil {
		return err
	}
	event := log.Info().Int64("stored", count).Bool("demo", st.DemoMode)
	if st.Warning != "" {
		event = event.Str("warning", st.Warning)
	}
	event.Msg("Refresh complete")
	return nil
}
