package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/internal/amenities"
	"github.com/terrafind/enrich-cli/internal/cadastre"
	"github.com/terrafind/enrich-cli/internal/enrich"
	"github.com/terrafind/enrich-cli/internal/layers"
	"github.com/terrafind/enrich-cli/internal/resilience"
	"github.com/terrafind/enrich-cli/internal/store"
	"github.com/terrafind/enrich-cli/internal/zoning"
	"github.com/terrafind/enrich-cli/pkg/catastro"
	"github.com/terrafind/enrich-cli/pkg/elevation"
	"github.com/terrafind/enrich-cli/pkg/nominatim"
	"github.com/terrafind/enrich-cli/pkg/ogc"
	"github.com/terrafind/enrich-cli/pkg/overpass"
	"github.com/terrafind/enrich-cli/pkg/translate"
)

// appEnv holds the initialized store, clients, and enrichment service
// shared by the enrich/batch/serve commands.
type appEnv struct {
	Store     store.Store // nil when the command runs without persistence
	Service   *enrich.Service
	Layers    *layers.Aggregator
	Amenities *amenities.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "enrich.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv builds every connector client and the enrichment service.
// withStore controls whether the database is opened and migrated; commands
// that never persist skip it. Callers should defer env.Close().
func initEnv(ctx context.Context, withStore bool) (*appEnv, error) {
	retry := resilience.DefaultPolicy()
	if cfg.Connectors.RetryAttempts > 0 {
		retry.Attempts = cfg.Connectors.RetryAttempts
	}
	registry := ogc.NewRegistry(
		ogc.WithTimeout(time.Duration(cfg.Connectors.TimeoutSecs)*time.Second),
		ogc.WithRetryPolicy(retry),
	)

	geocoder := nominatim.NewClient(
		nominatim.WithBaseURL(cfg.Nominatim.BaseURL),
		nominatim.WithUserAgent(cfg.Nominatim.UserAgent),
		nominatim.WithRateLimit(cfg.Nominatim.RateLimit),
	)
	overpassClient := overpass.NewClient(
		overpass.WithEndpoints(cfg.Overpass.Endpoints),
		overpass.WithRetryPolicy(retry),
	)
	elevClient := elevation.NewClient(elevation.WithBaseURL(cfg.Elevation.BaseURL))
	catastroClient := catastro.NewClient(catastro.WithBaseURL(cfg.Cadastre.CatastroBaseURL))

	cad := map[string]cadastre.Resolver{
		"PT": cadastre.NewPortugal(cfg.Cadastre.Portugal, registry),
		"ES": cadastre.NewSpain(cfg.Cadastre.Spain, catastroClient, registry),
	}
	ptZoning := zoning.NewPortugal(cfg.Zoning.Portugal, registry)
	zon := map[string]zoning.Resolver{
		"ES": zoning.NewSpain(zoning.DefaultSpainRegions(), registry),
		"DE": zoning.NewGermany(zoning.DefaultGermanyRegions(), registry),
	}

	catalog := layers.DefaultCatalog()
	if cfg.Layers.CatalogPath != "" {
		var err error
		catalog, err = layers.LoadCatalogFile(cfg.Layers.CatalogPath)
		if err != nil {
			return nil, eris.Wrap(err, "load layer catalog")
		}
	}
	aggregator := layers.NewAggregator(catalog, registry, elevClient, cad, zon)
	amenitySvc := amenities.NewService(overpassClient, cfg.Amenities.RadiusMeters)

	var translator translate.Translator
	if cfg.Translate.APIKey != "" {
		translator = translate.NewTranslator(cfg.Translate.APIKey, translate.WithModel(cfg.Translate.Model))
	} else {
		zap.L().Debug("ENRICH_TRANSLATE_API_KEY not set, zoning label translation disabled")
	}

	var st store.Store
	if withStore {
		var err error
		st, err = initStore(ctx)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
	}

	svc := enrich.NewService(enrich.Deps{
		Geocoder:   geocoder,
		Layers:     aggregator,
		Amenities:  amenitySvc,
		Cadastre:   cad,
		PTZoning:   ptZoning,
		Zoning:     zon,
		Translator: translator,
		Store:      st,
	})

	return &appEnv{
		Store:     st,
		Service:   svc,
		Layers:    aggregator,
		Amenities: amenitySvc,
	}, nil
}
