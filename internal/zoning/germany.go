package zoning

import (
	"github.com/terrafind/enrich-cli/pkg/ogc"
)

// DefaultGermanyRegions lists the Länder with open land-use WFS services.
// Germany has no national zoning endpoint; each Land publishes its own.
func DefaultGermanyRegions() []Region {
	return []Region{
		{
			Name:      "Bayern",
			BBox:      ogc.BBox{MinLng: 8.9, MinLat: 47.2, MaxLng: 13.9, MaxLat: 50.6},
			Endpoint:  "https://geoservices.bayern.de/wfs/v1/ogc_flaechennutzung.cgi",
			TypeName:  "flaechennutzung:nutzung",
			LabelKeys: []string{"nutzungsart", "nutzung", "bezeichnung"},
		},
		{
			Name:      "Nordrhein-Westfalen",
			BBox:      ogc.BBox{MinLng: 5.8, MinLat: 50.3, MaxLng: 9.5, MaxLat: 52.6},
			Endpoint:  "https://www.wfs.nrw.de/geobasis/wfs_nw_flaechennutzung",
			TypeName:  "nw_flaechennutzung:nutzung",
			LabelKeys: []string{"nutzungsart", "nutzung", "bezeichnung"},
		},
		{
			Name:      "Brandenburg",
			BBox:      ogc.BBox{MinLng: 11.2, MinLat: 51.3, MaxLng: 14.8, MaxLat: 53.6},
			Endpoint:  "https://inspire.brandenburg.de/services/lu_wfs",
			TypeName:  "lu:ExistingLandUseObject",
			LabelKeys: []string{"hilucsLandUse", "nutzungsart", "bezeichnung"},
		},
		{
			Name:      "Niedersachsen",
			BBox:      ogc.BBox{MinLng: 6.6, MinLat: 51.3, MaxLng: 11.6, MaxLat: 54.0},
			Endpoint:  "https://opendata.lgln.niedersachsen.de/doorman/noauth/flaechennutzung_wfs",
			TypeName:  "flaechennutzung:nutzung",
			LabelKeys: []string{"nutzungsart", "nutzung", "bezeichnung"},
		},
	}
}

// NewGermany resolves zoning from the Länder land-use services.
func NewGermany(regions []Region, registry *ogc.Registry) Resolver {
	if len(regions) == 0 {
		regions = DefaultGermanyRegions()
	}
	return &regionResolver{source: "de-zoning", regions: regions, registry: registry}
}
