// Package store persists plot enrichment records. Writes are defensive:
// enrichment data is merged key by key so concurrent enrichers touching
// different categories never erase each other's results.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// RealCoords is a verified plot position, distinct from the advertised
// coordinates the enrichment ran against.
type RealCoords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Plot is a persisted land-plot enrichment record.
type Plot struct {
	ID             string                     `json:"id"`
	Latitude       float64                    `json:"latitude"`
	Longitude      float64                    `json:"longitude"`
	RealLatitude   *float64                   `json:"real_latitude,omitempty"`
	RealLongitude  *float64                   `json:"real_longitude,omitempty"`
	MunicipalityID *string                    `json:"municipality_id,omitempty"`
	EnrichmentData map[string]json.RawMessage `json:"enrichment_data"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// Store defines the persistence interface for plot enrichment.
type Store interface {
	// UpsertEnrichment merges the given top-level enrichment keys into the
	// plot's record, creating the row if needed. Keys absent from data keep
	// their stored values. When coords is non-nil the plot's real
	// coordinates are updated only if they differ from the stored pair.
	UpsertEnrichment(ctx context.Context, plotID string, lat, lng float64, data map[string]json.RawMessage, coords *RealCoords) error

	GetPlot(ctx context.Context, id string) (*Plot, error)
	ListPlots(ctx context.Context, limit, offset int) ([]Plot, error)

	Migrate(ctx context.Context) error
	Close() error
}
