package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/terrafind/enrich-cli/internal/layers"
)

var (
	layersLat     float64
	layersLng     float64
	layersCountry string
	layersArea    float64
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "Query all geospatial layers for a coordinate",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Layers.QueryAllLayers(ctx, layers.Request{
			Coordinate: layers.Coordinate{Latitude: layersLat, Longitude: layersLng},
			Country:    layersCountry,
			AreaM2:     layersArea,
		})
		if err != nil {
			return eris.Wrap(err, "query layers")
		}

		out := json.NewEncoder(os.Stdout)
		out.SetIndent("", "  ")
		return out.Encode(resp)
	},
}

func init() {
	layersCmd.Flags().Float64Var(&layersLat, "lat", 0, "latitude (required)")
	layersCmd.Flags().Float64Var(&layersLng, "lng", 0, "longitude (required)")
	layersCmd.Flags().StringVar(&layersCountry, "country", "PT", "ISO country code (PT or ES)")
	layersCmd.Flags().Float64Var(&layersArea, "area", 0, "plot area in square meters, widens the search box")
	_ = layersCmd.MarkFlagRequired("lat")
	_ = layersCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(layersCmd)
}
