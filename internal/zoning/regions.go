package zoning

import (
	"context"

	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/internal/spatial"
	"github.com/terrafind/enrich-cli/pkg/ogc"
)

// Region is a WFS-backed zoning source scoped to a bounding box. Spain keys
// regions by autonomous community, Germany by Land; the lookup mechanics are
// identical.
type Region struct {
	Name      string   `yaml:"name" mapstructure:"name"`
	BBox      ogc.BBox `yaml:"bbox" mapstructure:"bbox"`
	Endpoint  string   `yaml:"endpoint" mapstructure:"endpoint"`
	TypeName  string   `yaml:"type_name" mapstructure:"type_name"`
	LabelKeys []string `yaml:"label_keys" mapstructure:"label_keys"`
}

type regionResolver struct {
	source   string
	regions  []Region
	registry *ogc.Registry
}

func (r *regionResolver) ResolveZoning(ctx context.Context, lat, lng float64) (*ZoningInfo, error) {
	for _, reg := range r.regions {
		if !reg.BBox.Contains(lng, lat) {
			continue
		}
		info, err := r.query(ctx, reg, lat, lng)
		if err != nil {
			// Region bboxes overlap at borders; a failing service should not
			// mask a neighbor that covers the point.
			zap.L().Warn("zoning: regional service failed",
				zap.String("source", r.source),
				zap.String("region", reg.Name),
				zap.Error(err))
			continue
		}
		if info != nil {
			return info, nil
		}
	}
	return nil, nil
}

func (r *regionResolver) query(ctx context.Context, reg Region, lat, lng float64) (*ZoningInfo, error) {
	u := ogc.BuildGetFeature(reg.Endpoint, reg.TypeName, ogc.PointBuffer(lng, lat, 0.001), 10)
	fc, err := r.registry.GetFeatures(ctx, u)
	if err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	best := pickFeature(fc.Features, lat, lng)
	label := labelFromFeature(best, reg.LabelKeys)
	if label == "" {
		return nil, nil
	}
	return &ZoningInfo{
		Label:  label,
		Region: reg.Name,
		Source: r.source,
	}, nil
}

// pickFeature prefers the feature whose geometry contains the point; when
// none does, the first feature stands in.
func pickFeature(feats []ogc.Feature, lat, lng float64) ogc.Feature {
	for _, f := range feats {
		g, err := spatial.DecodeGeometry(f.Geometry)
		if err != nil {
			continue
		}
		if spatial.PointInGeometry(lng, lat, g) {
			return f
		}
	}
	return feats[0]
}

func labelFromFeature(f ogc.Feature, keys []string) string {
	for _, k := range keys {
		if v := f.StringProp(k); v != "" {
			return v
		}
	}
	return ""
}
