package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/terrafind/enrich-cli/internal/enrich"
)

var (
	enrichLat       float64
	enrichLng       float64
	enrichPlotID    string
	enrichStore     bool
	enrichTranslate bool
	enrichLanguage  string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a single coordinate",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, enrichStore)
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Service.EnrichLocation(ctx, enrich.Request{
			Latitude:       enrichLat,
			Longitude:      enrichLng,
			PlotID:         enrichPlotID,
			StoreResults:   enrichStore,
			Translate:      enrichTranslate,
			TargetLanguage: enrichLanguage,
		})
		if err != nil {
			return eris.Wrap(err, "enrich location")
		}

		out := json.NewEncoder(os.Stdout)
		out.SetIndent("", "  ")
		return out.Encode(resp)
	},
}

func init() {
	enrichCmd.Flags().Float64Var(&enrichLat, "lat", 0, "latitude (required)")
	enrichCmd.Flags().Float64Var(&enrichLng, "lng", 0, "longitude (required)")
	enrichCmd.Flags().StringVar(&enrichPlotID, "plot-id", "", "plot identifier for persistence")
	enrichCmd.Flags().BoolVar(&enrichStore, "store", false, "persist results to the database (requires --plot-id)")
	enrichCmd.Flags().BoolVar(&enrichTranslate, "translate", false, "translate the zoning label")
	enrichCmd.Flags().StringVar(&enrichLanguage, "language", "en", "translation target language")
	_ = enrichCmd.MarkFlagRequired("lat")
	_ = enrichCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(enrichCmd)
}
