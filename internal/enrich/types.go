// Package enrich orchestrates the five-stage enrichment pipeline for one
// location: municipality resolution, layer aggregation, amenities,
// country-specific cadastre and zoning, and persistence.
package enrich

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/terrafind/enrich-cli/internal/amenities"
	"github.com/terrafind/enrich-cli/internal/cadastre"
	"github.com/terrafind/enrich-cli/internal/layers"
	"github.com/terrafind/enrich-cli/internal/zoning"
	"github.com/terrafind/enrich-cli/pkg/nominatim"
)

// Stage names as they appear in the run/skipped/failed lists.
const (
	StageMunicipality = "municipalities"
	StageLayers       = "layers"
	StageAmenities    = "amenities"
	StageCadastre     = "cadastre"
	StageZoning       = "zoning"
	StagePersistence  = "persistence"
)

// Request asks for one location's enrichment.
type Request struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	PlotID         string  `json:"plot_id,omitempty"`
	StoreResults   bool    `json:"store_results"`
	Translate      bool    `json:"translate"`
	TargetLanguage string  `json:"target_language,omitempty"`
}

// Validate fails fast before any I/O.
func (r Request) Validate() error {
	if r.StoreResults && r.PlotID == "" {
		return eris.New("enrich: store_results requires plot_id")
	}
	if r.Latitude < -90 || r.Latitude > 90 {
		return eris.Errorf("enrich: latitude %f out of range", r.Latitude)
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		return eris.Errorf("enrich: longitude %f out of range", r.Longitude)
	}
	return nil
}

// Location echoes the queried coordinate.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LayersEnrichment is the categorized view of the layer query plus the raw
// list kept for debugging.
type LayersEnrichment struct {
	ByCategory map[string][]layers.LayerResult `json:"by_category"`
	Raw        []layers.LayerResult            `json:"raw"`
}

// Response is the outcome of one enrichment run. Every stage name lands in
// exactly one of EnrichmentsRun, EnrichmentsSkipped, EnrichmentsFailed.
type Response struct {
	RunID              string                     `json:"run_id"`
	Location           Location                   `json:"location"`
	Country            string                     `json:"country,omitempty"`
	Municipality       *nominatim.Result          `json:"municipality,omitempty"`
	Amenities          *amenities.Info            `json:"amenities,omitempty"`
	Layers             *LayersEnrichment          `json:"layers,omitempty"`
	Zoning             *zoning.ZoningInfo         `json:"zoning,omitempty"`
	Cadastre           *cadastre.CadastralInfo    `json:"cadastre,omitempty"`
	EnrichmentData     map[string]json.RawMessage `json:"enrichment_data,omitempty"`
	EnrichmentsRun     []string                   `json:"enrichments_run"`
	EnrichmentsSkipped []string                   `json:"enrichments_skipped"`
	EnrichmentsFailed  []string                   `json:"enrichments_failed"`
	Timestamp          time.Time                  `json:"timestamp"`
	Error              string                     `json:"error,omitempty"`
}

func (r *Response) markRun(stage string)     { r.EnrichmentsRun = append(r.EnrichmentsRun, stage) }
func (r *Response) markSkipped(stage string) { r.EnrichmentsSkipped = append(r.EnrichmentsSkipped, stage) }
func (r *Response) markFailed(stage string)  { r.EnrichmentsFailed = append(r.EnrichmentsFailed, stage) }
