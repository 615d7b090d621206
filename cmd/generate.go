package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var generateFlags struct {
	keyword        string
	location       string
	category       string
	preset         string
	limit          int
	requireEmail   bool
	requireWebsite bool
	target         string
	apiKey         string
	json           bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Find and enrich leads for a keyword and location",
	Long: `Runs a preset against the configured providers and appends new leads to a
CSV target. Passing --target with an existing file resumes it: leads already
in the file are skipped and count toward the limit.

For the catalog preset the keyword names a catalog and the location is the
city whose localities are searched.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		preset := generateFlags.preset
		if preset == "" {
			preset = cfg.Discovery.Preset
		}
		limit := generateFlags.limit
		if limit == 0 {
			limit = cfg.Discovery.Limit
		}

		factory, st, err := initFactory(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		o, err := factory.Build(ctx, preset, pipeline.Overrides{SerpAPIKey: generateFlags.apiKey})
		if err != nil {
			return err
		}

		req := pipeline.Request{
			Keyword:        generateFlags.keyword,
			Location:       generateFlags.location,
			Category:       generateFlags.category,
			Limit:          limit,
			RequireEmail:   generateFlags.requireEmail,
			RequireWebsite: generateFlags.requireWebsite,
			Target:         generateFlags.target,
		}

		done, err := drain(os.Stdout, o.Run(ctx, req), generateFlags.json)
		if err != nil {
			return err
		}
		zap.L().Info("generate complete",
			zap.String("preset", preset),
			zap.String("target", done.Path),
			zap.Int("leads", done.Count),
		)
		return nil
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateFlags.keyword, "keyword", "k", "", "business keyword, role, or catalog name (required)")
	f.StringVarP(&generateFlags.location, "location", "l", "", "city or area (required)")
	f.StringVar(&generateFlags.category, "category", "", "category tag stamped on every lead")
	f.StringVarP(&generateFlags.preset, "preset", "p", "", "run preset (default from config)")
	f.IntVarP(&generateFlags.limit, "limit", "n", 0, "number of leads the target should hold (default from config)")
	f.BoolVar(&generateFlags.requireEmail, "require-email", false, "only save leads with an email address")
	f.BoolVar(&generateFlags.requireWebsite, "require-website", false, "only save leads with a website")
	f.StringVar(&generateFlags.target, "target", "", "existing CSV target to resume")
	f.StringVar(&generateFlags.apiKey, "api-key", "", "SerpAPI key for this run (overrides config)")
	f.BoolVar(&generateFlags.json, "json", false, "print events as JSON lines")
	_ = generateCmd.MarkFlagRequired("keyword")
	_ = generateCmd.MarkFlagRequired("location")
	rootCmd.AddCommand(generateCmd)
}
