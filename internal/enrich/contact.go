package enrich

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/classify"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/scrape"
)

// ContactStep scrapes a lead's website for email addresses and, when the
// listing had no phone, a phone number. If the home page yields no email it
// follows up to followLinks contact or about pages on the same site.
func ContactStep(scraper scrape.Scraper, filter classify.EmailFilter, followLinks int, pacer *resilience.Pacer) Step {
	return Step{
		Name: StepContact,
		Run: func(ctx context.Context, lead *model.Lead, notify Notify) error {
			if lead.Email != "" || strings.TrimSpace(lead.Website) == "" {
				return nil
			}
			target := scrape.NormalizeURL(lead.Website)

			if err := pacer.Wait(ctx); err != nil {
				return err
			}
			notify.send("Scraping %s for contact details...", lead.Name)
			page, err := scraper.Scrape(ctx, target)
			if err != nil {
				return eris.Wrap(err, "contact: scrape home page")
			}

			emails := pageEmails(filter, page)
			if lead.Phone == "" && lead.WebsitePhone == "" {
				lead.WebsitePhone = classify.FirstPhone(page.Text)
			}

			for _, link := range scrape.ContactLinks(page, followLinks) {
				if len(emails) > 0 {
					break
				}
				if err := pacer.Wait(ctx); err != nil {
					return err
				}
				sub, err := scraper.Scrape(ctx, link)
				if err != nil {
					continue
				}
				emails = pageEmails(filter, sub)
				if lead.Phone == "" && lead.WebsitePhone == "" {
					lead.WebsitePhone = classify.FirstPhone(sub.Text)
				}
			}

			if len(emails) > 0 {
				lead.Email = classify.JoinEmails(emails)
				notify.send("Found email for %s.", lead.Name)
			}
			return nil
		},
	}
}

// pageEmails collects mailto addresses first, then addresses in the text.
func pageEmails(filter classify.EmailFilter, p *scrape.Page) []string {
	candidates := slices.Clone(p.Mailto)
	candidates = append(candidates, filter.Emails(p.Text)...)
	return filter.Keep(candidates)
}
