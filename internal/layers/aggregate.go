package layers

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/terrafind/enrich-cli/internal/cadastre"
	"github.com/terrafind/enrich-cli/internal/spatial"
	"github.com/terrafind/enrich-cli/internal/zoning"
	"github.com/terrafind/enrich-cli/pkg/elevation"
	"github.com/terrafind/enrich-cli/pkg/ogc"
)

const (
	// defaultDelta is the half-side of the query box when no plot footprint
	// is known, roughly 100 m.
	defaultDelta = 0.001

	metersPerDegree = 111_320

	maxParallelConnectors = 4
)

// Aggregator queries every applicable layer for a point.
type Aggregator struct {
	catalog  *Catalog
	registry *ogc.Registry
	elev     elevation.Client
	cadastre map[string]cadastre.Resolver
	zoning   map[string]zoning.Resolver
}

// NewAggregator wires the aggregator. The cadastre and zoning maps are keyed
// by ISO country code.
func NewAggregator(catalog *Catalog, registry *ogc.Registry, elev elevation.Client, cad map[string]cadastre.Resolver, zon map[string]zoning.Resolver) *Aggregator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Aggregator{
		catalog:  catalog,
		registry: registry,
		elev:     elev,
		cadastre: cad,
		zoning:   zon,
	}
}

// QueryAllLayers runs every connector for the request's country. Connectors
// run in parallel under a small limit; a failing connector contributes a
// result with its error message, never a failed call. Partial results are
// always returned.
func (a *Aggregator) QueryAllLayers(ctx context.Context, req Request) (*LayerQueryResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	defs := a.catalog.ForCountry(req.Country)
	if len(defs) == 0 {
		return nil, eris.Errorf("layers: no layer set for country %q", req.Country)
	}

	delta := queryDelta(req)
	results := make([]LayerResult, len(defs))

	g := new(errgroup.Group)
	g.SetLimit(maxParallelConnectors)
	for i, def := range defs {
		i, def := i, def
		g.Go(func() error {
			results[i] = a.queryLayer(ctx, def, req, delta)
			return nil
		})
	}
	// Connectors report failure through LayerResult.Error, never through the
	// group.
	_ = g.Wait()

	resp := &LayerQueryResponse{
		Location:  req.Coordinate,
		Country:   req.Country,
		Layers:    results,
		AreaM2:    req.AreaM2,
		Polygon:   req.Polygon,
		QueriedAt: time.Now().UTC(),
	}
	if len(req.Polygon) == 0 && req.AreaM2 > 0 {
		box := ogc.PointBuffer(req.Longitude, req.Latitude, delta)
		resp.BoundingBox = &box
	}
	return resp, nil
}

// queryDelta derives the query box half-side from the plot footprint: the
// polygon bounds when given, else a square of side sqrt(area) centered on
// the point, else the default.
func queryDelta(req Request) float64 {
	if len(req.Polygon) > 0 {
		if g, err := spatial.DecodeGeometry(req.Polygon); err == nil {
			b := g.Bounds()
			d := math.Max((b.Max(0)-b.Min(0))/2, (b.Max(1)-b.Min(1))/2)
			return math.Max(d, defaultDelta)
		}
	}
	if req.AreaM2 > 0 {
		side := math.Sqrt(req.AreaM2)
		return math.Max(side/2/metersPerDegree, defaultDelta)
	}
	return defaultDelta
}

func (a *Aggregator) queryLayer(ctx context.Context, def Definition, req Request, delta float64) LayerResult {
	res := LayerResult{LayerID: def.ID, LayerName: def.Label}

	var err error
	switch def.Protocol {
	case ProtocolWFS:
		err = a.queryWFS(ctx, def, req, delta, &res)
	case ProtocolWMS:
		err = a.queryWMS(ctx, def, req, &res)
	case ProtocolCadastre:
		err = a.queryCadastre(ctx, req, &res)
	case ProtocolZoning:
		err = a.queryZoning(ctx, req, &res)
	case ProtocolElevation:
		err = a.queryElevation(ctx, req, &res)
	default:
		err = eris.Errorf("layers: unknown protocol %q", def.Protocol)
	}
	if err != nil {
		zap.L().Warn("layer connector failed",
			zap.String("layer", def.ID),
			zap.Float64("lat", req.Latitude), zap.Float64("lng", req.Longitude),
			zap.Error(err))
		res.Found = false
		res.Error = err.Error()
	}
	return res
}

func (a *Aggregator) queryWFS(ctx context.Context, def Definition, req Request, delta float64, res *LayerResult) error {
	u := ogc.BuildGetFeature(def.Endpoint, def.TypeName, ogc.PointBuffer(req.Longitude, req.Latitude, delta), 10)
	fc, err := a.registry.GetFeatures(ctx, u)
	if err != nil {
		return err
	}
	if len(fc.Features) == 0 {
		return nil
	}

	best := fc.Features[0]
	for _, f := range fc.Features {
		g, err := spatial.DecodeGeometry(f.Geometry)
		if err != nil {
			continue
		}
		if spatial.PointInGeometry(req.Longitude, req.Latitude, g) {
			best = f
			break
		}
	}

	res.Found = true
	res.Value = firstProp(best, def.ValueKeys)
	res.Properties = best.Properties
	return nil
}

func (a *Aggregator) queryWMS(ctx context.Context, def Definition, req Request, res *LayerResult) error {
	u := ogc.BuildGetFeatureInfo(def.Endpoint, def.WMSLayer, req.Longitude, req.Latitude)
	fc, err := a.registry.GetFeatures(ctx, u)
	if err != nil {
		return err
	}
	if len(fc.Features) == 0 {
		return nil
	}

	res.Found = true
	res.Value = firstProp(fc.Features[0], def.ValueKeys)
	res.Properties = fc.Features[0].Properties
	return nil
}

func (a *Aggregator) queryCadastre(ctx context.Context, req Request, res *LayerResult) error {
	resolver, ok := a.cadastre[req.Country]
	if !ok {
		return eris.Errorf("layers: no cadastre resolver for %q", req.Country)
	}
	info, err := resolver.ResolveParcel(ctx, req.Latitude, req.Longitude)
	if err != nil {
		return err
	}
	if info == nil {
		return nil
	}

	res.Found = true
	res.Value = info.CadastralReference
	res.Properties = map[string]any{
		"area_m2":         info.AreaM2,
		"distance_meters": info.DistanceMeters,
		"contains_point":  info.ContainsPoint,
		"source":          info.Source,
	}
	return nil
}

func (a *Aggregator) queryZoning(ctx context.Context, req Request, res *LayerResult) error {
	resolver, ok := a.zoning[req.Country]
	if !ok {
		return eris.Errorf("layers: no zoning resolver for %q", req.Country)
	}
	info, err := resolver.ResolveZoning(ctx, req.Latitude, req.Longitude)
	if err != nil {
		return err
	}
	if info == nil {
		return nil
	}

	res.Found = true
	res.Value = info.Label
	res.Properties = map[string]any{
		"region": info.Region,
		"source": info.Source,
	}
	return nil
}

func (a *Aggregator) queryElevation(ctx context.Context, req Request, res *LayerResult) error {
	out, err := a.elev.Lookup(ctx, req.Latitude, req.Longitude)
	if err != nil {
		return err
	}
	res.Found = true
	res.Value = strconv.FormatFloat(out.ElevationM, 'f', 1, 64)
	res.Properties = map[string]any{"elevation_m": out.ElevationM}
	return nil
}

func firstProp(f ogc.Feature, keys []string) string {
	for _, k := range keys {
		if v := f.StringProp(k); v != "" {
			return v
		}
	}
	return ""
}
