package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leadgen",
	Short: "Find, enrich and export business leads",
	Long: `leadgen searches business listings (SerpAPI Maps, Google Places, LinkedIn
X-Ray or an existing lead file), drops duplicates, and enriches every new
lead with the steps its preset names: website contact scrape, email search,
decision maker lookup, business classification and AI pitch findings.

Leads are appended to a CSV target as they are accepted, so an interrupted
run picks up where it stopped when started again with the same --target.

Settings come from config.yaml in the working directory and LEADGEN_*
environment variables (SERPAPI_KEY, GEMINI_API_KEY and ANTHROPIC_API_KEY
are read as well).`,
	Example: `  leadgen generate -p b2b -k "steel fabricators" -l Pune -n 25
  leadgen analyze generated_leads/leads_cafes_Austin_20260301_093000.csv
  leadgen serve`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		return eris.Wrap(config.InitLogger(cfg.Log), "init logger")
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
