package enrich

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/classify"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/pkg/serpapi"
)

const (
	emailSearchResults = 5
	emailSearchPages   = 2
)

// knowledgeGraphFields are the knowledge-graph entries that tend to carry a
// contact address.
var knowledgeGraphFields = []string{"email", "description", "snippet"}

// EmailSearchStep looks for an address through web search when the lead
// still has none: first in result snippets and the knowledge graph, then on
// up to two non-social result pages.
func EmailSearchStep(client serpapi.Client, scraper scrape.Scraper, filter classify.EmailFilter, pacer *resilience.Pacer) Step {
	return Step{
		Name: StepEmailSearch,
		Run: func(ctx context.Context, lead *model.Lead, notify Notify) error {
			if lead.Email != "" {
				return nil
			}
			if client == nil {
				return eris.New("email_search: no search client")
			}

			if err := pacer.Wait(ctx); err != nil {
				return err
			}
			notify.send("Searching the web for %s's email...", lead.Name)
			resp, err := client.Search(ctx, serpapi.SearchParams{
				Engine: serpapi.EngineGoogle,
				Query:  EmailSearchQuery(*lead),
				Num:    emailSearchResults,
			})
			if err != nil {
				return eris.Wrap(err, "email_search: search")
			}

			emails := filter.Keep(searchCandidates(filter, resp))

			scraped := 0
			for _, r := range resp.OrganicResults {
				if len(emails) > 0 || scraped >= emailSearchPages {
					break
				}
				if r.Link == "" || scrape.IsSocial(r.Link) {
					continue
				}
				scraped++
				if err := pacer.Wait(ctx); err != nil {
					return err
				}
				page, err := scraper.Scrape(ctx, r.Link)
				if err != nil {
					continue
				}
				emails = pageEmails(filter, page)
			}

			if len(emails) > 0 {
				lead.Email = classify.JoinEmails(emails)
				notify.send("Found email for %s via search.", lead.Name)
			}
			return nil
		},
	}
}

// EmailSearchQuery builds the web query used to find a lead's address.
func EmailSearchQuery(lead model.Lead) string {
	loc := lead.TargetLocation
	if loc == "" {
		loc = lead.Address
	}
	return strings.TrimSpace(fmt.Sprintf(`"%s" %s email contact`, lead.Name, loc))
}

func searchCandidates(filter classify.EmailFilter, resp *serpapi.SearchResponse) []string {
	var out []string
	for _, r := range resp.OrganicResults {
		out = append(out, filter.Emails(r.Snippet)...)
	}

	kg := resp.KnowledgeGraph
	if kg == nil {
		return out
	}
	for _, f := range knowledgeGraphFields {
		if s, ok := kg[f].(string); ok {
			out = append(out, filter.Emails(s)...)
		}
	}
	if attrs, ok := kg["attributes"].(map[string]any); ok {
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, filter.Emails(fmt.Sprint(attrs[k]))...)
		}
	}
	return out
}
