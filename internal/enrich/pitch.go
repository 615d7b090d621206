package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/pkg/microlink"
)

// Finding texts written when no pitch could be generated.
const (
	FindingNoWebsite   = "No website found."
	FindingUnreachable = "Could not access website."
	findingErrorPrefix = "AI Generation Error: "
)

// promptTextChars caps the website text quoted in the prompt.
const promptTextChars = 2000

const pitchPrompt = `You are the Director of a premium web development agency writing a short outreach pitch to the OWNER of this company's website.
You have a full-page screenshot of the site (when available) and some of its text.

Identify exactly %[1]d specific technical issues with the website that hurt the business, and pitch how your agency would fix each one to win more leads and sales.

Rules:
1. Each point is one professional sentence for a business owner, not a developer.
2. At most 20 words per point.
3. Focus on business impact: lost customers, slow loading, poor mobile experience, outdated design, missing trust signals.
4. Confident, consultative tone.
5. Answer with a valid JSON array of exactly %[1]d strings and nothing else. No markdown code fences.

Website: %[2]s
Website text: %[3]s`

// PitchConfig wires the pitch step.
type PitchConfig struct {
	Scraper scrape.Scraper
	// Screenshots is optional; without it the prompt is text only.
	Screenshots  microlink.Client
	Generator    Generator
	Findings     int
	MaxTextChars int
	Pacer        *resilience.Pacer
}

// PitchStep audits the lead's website with an AI model and stores the
// resulting findings and a status tag.
func PitchStep(cfg PitchConfig) Step {
	if cfg.Findings <= 0 {
		cfg.Findings = model.FindingSlots
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = 3000
	}

	return Step{
		Name: StepPitch,
		Run: func(ctx context.Context, lead *model.Lead, notify Notify) error {
			if strings.TrimSpace(lead.Website) == "" {
				lead.Findings = []string{FindingNoWebsite}
				lead.Status = model.NotApplicable
				notify.send("Skipped %s: no website.", lead.Name)
				return nil
			}
			target := scrape.NormalizeURL(lead.Website)

			var shot *microlink.Screenshot
			if cfg.Screenshots != nil {
				if err := cfg.Pacer.Wait(ctx); err != nil {
					return err
				}
				notify.send("Capturing screenshot for %s...", lead.Name)
				s, err := cfg.Screenshots.Screenshot(ctx, target)
				if err != nil {
					zap.L().Debug("pitch: screenshot failed", zap.String("url", target), zap.Error(err))
				} else {
					shot = s
				}
			}

			var text string
			if err := cfg.Pacer.Wait(ctx); err != nil {
				return err
			}
			if page, err := cfg.Scraper.Scrape(ctx, target); err == nil {
				text = truncateRunes(page.Text, cfg.MaxTextChars)
			} else {
				zap.L().Debug("pitch: scrape failed", zap.String("url", target), zap.Error(err))
			}

			if shot == nil && text == "" {
				lead.Findings = []string{FindingUnreachable}
				lead.Status = model.StatusUnreachable
				notify.send("Failed to scrape %s.", lead.Website)
				return nil
			}

			notify.send("Analyzing %s with %s...", lead.Name, cfg.Generator.Name())
			prompt := fmt.Sprintf(pitchPrompt, cfg.Findings, target, truncateRunes(text, promptTextChars))
			raw, err := cfg.Generator.Generate(ctx, prompt, shot)
			if err != nil {
				lead.Findings = []string{findingErrorPrefix + err.Error()}
			} else {
				lead.Findings = ParseFindings(raw, cfg.Findings)
			}
			lead.Status = model.StatusPendingContact
			notify.send("Generated pitch for %s.", lead.Name)
			return nil
		},
		Placeholder: func(lead *model.Lead) {
			lead.Findings = []string{FindingUnreachable}
			lead.Status = model.StatusUnreachable
		},
	}
}

var (
	markupRe = regexp.MustCompile(`[\r\n*_~#]+`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// ParseFindings turns model output into at most n findings. A JSON array
// yields its first n items; anything else is kept as a single finding.
// Short arrays are not padded, so the unused finding columns stay empty.
func ParseFindings(raw string, n int) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err == nil && len(items) > 0 {
		if len(items) > n {
			items = items[:n]
		}
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = cleanFinding(fmt.Sprint(it))
		}
		return out
	}
	return []string{cleanFinding(raw)}
}

func cleanFinding(s string) string {
	s = markupRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
