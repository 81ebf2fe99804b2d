package layers

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Connector protocols a layer definition can name.
const (
	ProtocolWFS       = "wfs"
	ProtocolWMS       = "wms"
	ProtocolCadastre  = "cadastre"
	ProtocolZoning    = "zoning"
	ProtocolElevation = "elevation"
)

// Definition declares one queryable layer. The catalog keeps the per-country
// connector sets declarative instead of hard-coding endpoints per connector.
type Definition struct {
	ID        string   `yaml:"id"`
	Country   string   `yaml:"country"`
	Label     string   `yaml:"label"`
	Protocol  string   `yaml:"protocol"`
	Endpoint  string   `yaml:"endpoint,omitempty"`
	TypeName  string   `yaml:"type_name,omitempty"`
	WMSLayer  string   `yaml:"wms_layer,omitempty"`
	ValueKeys []string `yaml:"value_keys,omitempty"`
}

// Catalog is the full layer inventory.
type Catalog struct {
	Layers []Definition `yaml:"layers"`
}

//go:embed layers.yaml
var defaultCatalogYAML []byte

// DefaultCatalog parses the embedded layer inventory. The embedded file is
// part of the build; a parse failure is a programming error.
func DefaultCatalog() *Catalog {
	c, err := parseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalogFile reads a catalog override from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "layers: read catalog")
	}
	return parseCatalog(raw)
}

func parseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, eris.Wrap(err, "layers: parse catalog")
	}
	if len(c.Layers) == 0 {
		return nil, eris.New("layers: catalog has no layers")
	}
	seen := make(map[string]bool, len(c.Layers))
	for _, d := range c.Layers {
		if d.ID == "" || d.Country == "" || d.Protocol == "" {
			return nil, eris.Errorf("layers: incomplete definition %q", d.ID)
		}
		if seen[d.ID] {
			return nil, eris.Errorf("layers: duplicate layer id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return &c, nil
}

// ForCountry returns the definitions applicable to an ISO country code, in
// catalog order.
func (c *Catalog) ForCountry(country string) []Definition {
	var out []Definition
	for _, d := range c.Layers {
		if d.Country == country {
			out = append(out, d)
		}
	}
	return out
}
