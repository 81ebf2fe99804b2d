package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/terrafind/enrich-cli/internal/amenities"
	"github.com/terrafind/enrich-cli/pkg/overpass"
)

var (
	amenitiesLat    float64
	amenitiesLng    float64
	amenitiesRadius int
)

var amenitiesCmd = &cobra.Command{
	Use:   "amenities",
	Short: "Find the nearest amenities around a coordinate",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client := overpass.NewClient(overpass.WithEndpoints(cfg.Overpass.Endpoints))
		radius := amenitiesRadius
		if radius <= 0 {
			radius = cfg.Amenities.RadiusMeters
		}
		svc := amenities.NewService(client, radius)

		info, err := svc.Nearby(ctx, amenitiesLat, amenitiesLng)
		if err != nil {
			return eris.Wrap(err, "amenity search")
		}

		out := json.NewEncoder(os.Stdout)
		out.SetIndent("", "  ")
		return out.Encode(info)
	},
}

func init() {
	amenitiesCmd.Flags().Float64Var(&amenitiesLat, "lat", 0, "latitude (required)")
	amenitiesCmd.Flags().Float64Var(&amenitiesLng, "lng", 0, "longitude (required)")
	amenitiesCmd.Flags().IntVar(&amenitiesRadius, "radius", 0, "search radius in meters (default from config)")
	_ = amenitiesCmd.MarkFlagRequired("lat")
	_ = amenitiesCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(amenitiesCmd)
}
