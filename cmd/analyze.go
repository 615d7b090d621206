package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/fetcher"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/resilience"
)

var analyzeFlags struct {
	limit         int
	target        string
	pitchProvider string
	json          bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <leads.csv|leads.xlsx|url>",
	Short: "Add AI website findings to an existing lead file",
	Long: `Reads a lead file, visits each website and asks the configured model for
pitch findings. Results go to <file>_analyzed.csv next to the source, which
is resumed when the command is run again. http(s) and ftp URLs are
downloaded into the output directory first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if p := analyzeFlags.pitchProvider; p != "" {
			cfg.Discovery.PitchProvider = p
		}

		factory, st, err := initFactory(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		src, err := fetcher.Localize(ctx, args[0], filepath.Join(cfg.Discovery.OutputDir, "downloads"), fetcher.Options{
			UserAgent: cfg.Scrape.UserAgent,
			Retry:     resilience.FromConfig(cfg.Retry),
		})
		if err != nil {
			return err
		}

		o, err := factory.Build(ctx, "analyze", pipeline.Overrides{})
		if err != nil {
			return err
		}

		req := pipeline.Request{
			Source: src,
			Limit:  analyzeFlags.limit,
			Target: analyzeFlags.target,
		}
		done, err := drain(os.Stdout, o.Run(ctx, req), analyzeFlags.json)
		if err != nil {
			return err
		}
		zap.L().Info("analyze complete", zap.String("source", src), zap.String("target", done.Path), zap.Int("leads", done.Count))
		return nil
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.IntVarP(&analyzeFlags.limit, "limit", "n", 0, "analyze at most this many leads (default every row)")
	f.StringVar(&analyzeFlags.target, "target", "", "output CSV (default <file>_analyzed.csv)")
	f.StringVar(&analyzeFlags.pitchProvider, "pitch-provider", "", "gemini or anthropic (default from config)")
	f.BoolVar(&analyzeFlags.json, "json", false, "print events as JSON lines")
	rootCmd.AddCommand(analyzeCmd)
}
