package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/internal/enrich"
	"github.com/terrafind/enrich-cli/internal/layers"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP enrichment API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		withStore := cfg.Store.DatabaseURL != "" || cfg.Store.Driver == "sqlite"
		env, err := initEnv(ctx, withStore)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(env.Service, env.Layers),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// layerQuerier is the slice of the aggregator the layers endpoint needs.
type layerQuerier interface {
	QueryAllLayers(ctx context.Context, req layers.Request) (*layers.LayerQueryResponse, error)
}

type enrichRequestBody struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	PlotID         string  `json:"plot_id,omitempty"`
	StoreResults   bool    `json:"store_results,omitempty"`
	Translate      bool    `json:"translate,omitempty"`
	TargetLanguage string  `json:"target_language,omitempty"`
}

// buildRouter assembles the HTTP API. Enrichment runs synchronously; the
// pipeline degrades per stage, so a response always comes back.
func buildRouter(svc enricher, agg layerQuerier) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/enrich", func(w http.ResponseWriter, req *http.Request) {
		var body enrichRequestBody
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		resp, err := svc.EnrichLocation(req.Context(), enrich.Request{
			Latitude:       body.Latitude,
			Longitude:      body.Longitude,
			PlotID:         body.PlotID,
			StoreResults:   body.StoreResults,
			Translate:      body.Translate,
			TargetLanguage: body.TargetLanguage,
		})
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/layers", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
		if errLat != nil || errLng != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lng query parameters are required"})
			return
		}
		country := q.Get("country")
		if country == "" {
			country = "PT"
		}

		resp, err := agg.QueryAllLayers(req.Context(), layers.Request{
			Coordinate: layers.Coordinate{Latitude: lat, Longitude: lng},
			Country:    country,
		})
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}
