// Package query turns a search intent into provider queries and walks their
// pages.
package query

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Intent is what the caller asked for.
type Intent struct {
	Keyword  string
	Location string
	// Category tags catalog leads, e.g. MANUFACTURER.
	Category string
	// File is the lead file replayed by re-enrichment runs.
	File string
}

// Expander turns an intent into an ordered list of queries. Expand is pure:
// the same intent always yields the same queries in the same order.
type Expander interface {
	Expand(in Intent) ([]string, error)
}

// Common templates.
const (
	TemplateSpace = "{keyword} {location}"
	TemplateIn    = "{keyword} in {location}"
)

// TemplateExpander produces a single query from a template with {keyword}
// and {location} placeholders.
type TemplateExpander struct {
	Template string
}

// Expand implements Expander.
func (e TemplateExpander) Expand(in Intent) ([]string, error) {
	if err := requireKeywordLocation(in); err != nil {
		return nil, err
	}
	tpl := e.Template
	if tpl == "" {
		tpl = TemplateSpace
	}
	r := strings.NewReplacer("{keyword}", strings.TrimSpace(in.Keyword), "{location}", strings.TrimSpace(in.Location))
	return []string{r.Replace(tpl)}, nil
}

// XRayExpander produces a site-restricted profile search.
type XRayExpander struct{}

// Expand implements Expander.
func (XRayExpander) Expand(in Intent) ([]string, error) {
	if err := requireKeywordLocation(in); err != nil {
		return nil, err
	}
	return []string{XRayQuery(in.Keyword, in.Location)}, nil
}

// XRayQuery builds the profile search for a role or keyword in a location.
func XRayQuery(keyword, location string) string {
	return fmt.Sprintf(`site:linkedin.com/in/ "%s" "%s"`, strings.TrimSpace(keyword), strings.TrimSpace(location))
}

// FileExpander yields the intent's source file as the only query.
type FileExpander struct{}

// Expand implements Expander.
func (FileExpander) Expand(in Intent) ([]string, error) {
	if strings.TrimSpace(in.File) == "" {
		return nil, eris.New("query: source file is required")
	}
	return []string{in.File}, nil
}

func requireKeywordLocation(in Intent) error {
	var missing []string
	if strings.TrimSpace(in.Keyword) == "" {
		missing = append(missing, "keyword")
	}
	if strings.TrimSpace(in.Location) == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return eris.Errorf("query: %s required", strings.Join(missing, " and "))
	}
	return nil
}
