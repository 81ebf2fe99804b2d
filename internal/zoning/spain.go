package zoning

import (
	"github.com/terrafind/enrich-cli/pkg/ogc"
)

// DefaultSpainRegions lists the autonomous-community zoning services with
// published WFS endpoints. Coverage is partial; a point outside every bbox
// simply has no regional zoning data.
func DefaultSpainRegions() []Region {
	return []Region{
		{
			Name:      "Andalucía",
			BBox:      ogc.BBox{MinLng: -7.6, MinLat: 35.9, MaxLng: -1.6, MaxLat: 38.8},
			Endpoint:  "https://www.ideandalucia.es/services/DERA_g13_sociedad/wfs",
			TypeName:  "DERA_g13_sociedad:g13_08_UsoSuelo",
			LabelKeys: []string{"uso", "descripcion", "clase"},
		},
		{
			Name:      "Cataluña",
			BBox:      ogc.BBox{MinLng: 0.1, MinLat: 40.5, MaxLng: 3.4, MaxLat: 42.9},
			Endpoint:  "https://geoserveis.icgc.cat/servei/catalunya/mapa-urbanistic/wfs",
			TypeName:  "mapa-urbanistic:classificacio",
			LabelKeys: []string{"classificacio", "descripcio", "qualificacio"},
		},
		{
			Name:      "Comunidad Valenciana",
			BBox:      ogc.BBox{MinLng: -1.6, MinLat: 37.8, MaxLng: 0.8, MaxLat: 40.8},
			Endpoint:  "https://terramapas.icv.gva.es/planeamiento/wfs",
			TypeName:  "planeamiento:clasificacion_suelo",
			LabelKeys: []string{"clasificacion", "calificacion", "descripcion"},
		},
		{
			Name:      "Comunidad de Madrid",
			BBox:      ogc.BBox{MinLng: -4.6, MinLat: 39.9, MaxLng: -3.0, MaxLat: 41.2},
			Endpoint:  "https://idem.madrid.org/geoserver/urbanismo/wfs",
			TypeName:  "urbanismo:clasificacion_urbanistica",
			LabelKeys: []string{"clasificacion", "descripcion", "uso"},
		},
		{
			Name:      "Galicia",
			BBox:      ogc.BBox{MinLng: -9.4, MinLat: 41.8, MaxLng: -6.7, MaxLat: 43.8},
			Endpoint:  "https://ideg.xunta.gal/servizos/services/WFS/Urbanismo/wfs",
			TypeName:  "Urbanismo:clasificacion_solo",
			LabelKeys: []string{"clasificacion", "cualificacion", "descricion"},
		},
	}
}

// NewSpain resolves zoning from the autonomous-community planning services.
func NewSpain(regions []Region, registry *ogc.Registry) Resolver {
	if len(regions) == 0 {
		regions = DefaultSpainRegions()
	}
	return &regionResolver{source: "es-zoning", regions: regions, registry: registry}
}
