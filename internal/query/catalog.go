package query

import (
	_ "embed"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed catalogs/default.yaml
var defaultCatalogs []byte

// Catalog is a named set of topical phrases searched across the localities
// of a city.
type Catalog struct {
	Name string `yaml:"name"`
	// Category is stamped on every lead the catalog finds.
	Category string   `yaml:"category"`
	Phrases  []string `yaml:"phrases"`
	// Localities maps a city to the areas searched for it. "{city}" in an
	// entry is replaced by the city. The "default" entry serves cities
	// without their own list.
	Localities map[string][]string `yaml:"localities"`
}

// AreasFor returns the areas to search for city, always starting with the
// city itself.
func (c Catalog) AreasFor(city string) []string {
	city = strings.TrimSpace(city)
	tpl, ok := c.Localities[city]
	if !ok {
		tpl = c.Localities["default"]
	}

	areas := []string{city}
	for _, t := range tpl {
		a := strings.TrimSpace(strings.ReplaceAll(t, "{city}", city))
		if a != "" && !slices.Contains(areas, a) {
			areas = append(areas, a)
		}
	}
	return areas
}

// LoadCatalogs reads catalogs from a YAML file. An empty path loads the
// built-in catalogs.
func LoadCatalogs(path string) (map[string]Catalog, error) {
	data := defaultCatalogs
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "query: read catalogs %s", path)
		}
	}
	return ParseCatalogs(data)
}

// ParseCatalogs decodes a catalogs document.
func ParseCatalogs(data []byte) (map[string]Catalog, error) {
	var doc struct {
		Catalogs []Catalog `yaml:"catalogs"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "query: parse catalogs")
	}

	out := make(map[string]Catalog, len(doc.Catalogs))
	for _, c := range doc.Catalogs {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if key == "" {
			return nil, eris.New("query: catalog without a name")
		}
		if len(c.Phrases) == 0 {
			return nil, eris.Errorf("query: catalog %s has no phrases", c.Name)
		}
		out[key] = c
	}
	return out, nil
}

// CatalogExpander crosses a catalog's phrases with a city's localities.
// The intent's keyword names the catalog and its location is the city.
// Queries are locality-major: every phrase for the first area, then every
// phrase for the next.
type CatalogExpander struct {
	Catalogs map[string]Catalog
}

// Expand implements Expander.
func (e CatalogExpander) Expand(in Intent) ([]string, error) {
	if err := requireKeywordLocation(in); err != nil {
		return nil, err
	}
	c, ok := e.Lookup(in.Keyword)
	if !ok {
		return nil, eris.Errorf("query: unknown catalog %q", in.Keyword)
	}

	areas := c.AreasFor(in.Location)
	queries := make([]string, 0, len(areas)*len(c.Phrases))
	for _, area := range areas {
		for _, p := range c.Phrases {
			queries = append(queries, strings.TrimSpace(p)+" "+area)
		}
	}
	return queries, nil
}

// Lookup finds a catalog by name, ignoring case.
func (e CatalogExpander) Lookup(name string) (Catalog, bool) {
	c, ok := e.Catalogs[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// CategoryFor returns the category tag of the intent's catalog, or "".
func (e CatalogExpander) CategoryFor(in Intent) string {
	c, _ := e.Lookup(in.Keyword)
	return c.Category
}
