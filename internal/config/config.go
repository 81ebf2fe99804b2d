// Package config loads application configuration from an optional YAML file
// and ENRICH_-prefixed environment variables, and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/terrafind/enrich-cli/internal/cadastre"
	"github.com/terrafind/enrich-cli/internal/zoning"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Nominatim  NominatimConfig  `yaml:"nominatim" mapstructure:"nominatim"`
	Overpass   OverpassConfig   `yaml:"overpass" mapstructure:"overpass"`
	Elevation  ElevationConfig  `yaml:"elevation" mapstructure:"elevation"`
	Translate  TranslateConfig  `yaml:"translate" mapstructure:"translate"`
	Layers     LayersConfig     `yaml:"layers" mapstructure:"layers"`
	Amenities  AmenitiesConfig  `yaml:"amenities" mapstructure:"amenities"`
	Cadastre   CadastreConfig   `yaml:"cadastre" mapstructure:"cadastre"`
	Zoning     ZoningConfig     `yaml:"zoning" mapstructure:"zoning"`
	Connectors ConnectorsConfig `yaml:"connectors" mapstructure:"connectors"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// NominatimConfig configures the reverse geocoder.
type NominatimConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// OverpassConfig configures the OSM amenity source.
type OverpassConfig struct {
	Endpoints []string `yaml:"endpoints" mapstructure:"endpoints"`
}

// ElevationConfig configures the elevation API.
type ElevationConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// TranslateConfig configures zoning label translation. An empty key
// disables the translator.
type TranslateConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	Model  string `yaml:"model" mapstructure:"model"`
}

// LayersConfig configures the layer catalog. An empty path uses the
// embedded catalog.
type LayersConfig struct {
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// AmenitiesConfig configures the amenity search.
type AmenitiesConfig struct {
	RadiusMeters int `yaml:"radius_meters" mapstructure:"radius_meters"`
}

// CadastreConfig holds the per-country cadastre settings.
type CadastreConfig struct {
	Portugal        cadastre.PortugalConfig `yaml:"portugal" mapstructure:"portugal"`
	Spain           cadastre.SpainConfig    `yaml:"spain" mapstructure:"spain"`
	CatastroBaseURL string                  `yaml:"catastro_base_url" mapstructure:"catastro_base_url"`
}

// ZoningConfig holds the per-country zoning settings. Spanish and German
// regions come from code defaults; only Portugal's endpoints are tunable.
type ZoningConfig struct {
	Portugal zoning.PortugalConfig `yaml:"portugal" mapstructure:"portugal"`
}

// ConnectorsConfig tunes the shared HTTP behavior of the geodata connectors.
type ConnectorsConfig struct {
	TimeoutSecs   int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// BatchConfig configures batch enrichment.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	DelayMs     int `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.concurrency", 2)
	v.SetDefault("batch.delay_ms", 500)
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.user_agent", "terrafind-enrich-cli/1.0")
	v.SetDefault("nominatim.rate_limit", 1.0)
	v.SetDefault("overpass.endpoints", []string{
		"https://overpass-api.de/api/interpreter",
		"https://overpass.kumi.systems/api/interpreter",
		"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
	})
	v.SetDefault("elevation.base_url", "https://api.open-elevation.com")
	v.SetDefault("translate.model", "claude-haiku-4-5-20251001")
	v.SetDefault("amenities.radius_meters", 10000)
	v.SetDefault("connectors.timeout_secs", 30)
	v.SetDefault("connectors.retry_attempts", 3)
	v.SetDefault("cadastre.catastro_base_url", "https://ovc.catastro.meh.es/OVCServWeb/OVCSWLocalizacionRC/OVCCoordenadas.svc/json")

	def := cadastre.DefaultPortugalConfig()
	v.SetDefault("cadastre.portugal.ogcapi_endpoint", def.OGCAPIEndpoint)
	v.SetDefault("cadastre.portugal.ogc_collection", def.OGCCollection)
	v.SetDefault("cadastre.portugal.bupi_continental", def.BUPiContinental)
	v.SetDefault("cadastre.portugal.bupi_madeira", def.BUPiMadeira)

	es := cadastre.DefaultSpainConfig()
	v.SetDefault("cadastre.spain.wfs_endpoint", es.WFSEndpoint)
	v.SetDefault("cadastre.spain.type_name", es.TypeName)

	zpt := zoning.DefaultPortugalConfig()
	v.SetDefault("zoning.portugal.crus_endpoint", zpt.CRUSEndpoint)
	v.SetDefault("zoning.portugal.crus_layer", zpt.CRUSLayer)
	v.SetDefault("zoning.portugal.cos_endpoint", zpt.COSEndpoint)
	v.SetDefault("zoning.portugal.cos_layer", zpt.COSLayer)
	v.SetDefault("zoning.portugal.caop_endpoint", zpt.CAOPEndpoint)
	v.SetDefault("zoning.portugal.parish_type_name", zpt.ParishTypeName)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
