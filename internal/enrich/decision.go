package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/provider"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/serpapi"
)

// DecisionMakerQuery is the profile search used to find who owns or buys
// for a company.
func DecisionMakerQuery(company string) string {
	return fmt.Sprintf(`site:linkedin.com/in/ "%s" ("owner" OR "founder" OR "buyer" OR "purchasing")`, company)
}

// DecisionMakerStep looks up the top public profile of an owner, founder
// or buyer at the lead's company.
func DecisionMakerStep(client serpapi.Client, pacer *resilience.Pacer) Step {
	return Step{
		Name: StepDecisionMaker,
		Run: func(ctx context.Context, lead *model.Lead, notify Notify) error {
			if client == nil {
				return eris.New("decision_maker: no search client")
			}
			if err := pacer.Wait(ctx); err != nil {
				return err
			}
			notify.send("Searching LinkedIn for the owner or buyer at %s...", lead.Name)

			resp, err := client.Search(ctx, serpapi.SearchParams{
				Engine: serpapi.EngineGoogle,
				Query:  DecisionMakerQuery(lead.Name),
				Num:    1,
			})
			if err != nil {
				return eris.Wrap(err, "decision_maker: search")
			}

			notFound(lead)
			if len(resp.OrganicResults) == 0 {
				return nil
			}
			top := resp.OrganicResults[0]
			if !strings.Contains(top.Link, "/in/") {
				return nil
			}
			name, _ := provider.ParseProfileTitle(top.Title)
			if name == "" {
				name = "Unknown"
			}
			lead.DecisionMakerName = name
			lead.DecisionMakerProfile = top.Link
			if top.Snippet != "" {
				lead.DecisionMakerBio = top.Snippet
			}
			notify.send("Found decision maker: %s", name)
			return nil
		},
		Placeholder: notFound,
	}
}

func notFound(lead *model.Lead) {
	lead.DecisionMakerName = model.NotFound
	lead.DecisionMakerProfile = model.NotApplicable
	lead.DecisionMakerBio = model.NotApplicable
}
