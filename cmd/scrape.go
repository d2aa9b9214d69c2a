package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listing-harvester/internal/model"
)

var (
	scrapeTerm        string
	scrapeLocation    string
	scrapeParallelism int
	scrapeMaxPages    int
	scrapeExcludeFile string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one harvest of the configured directory",
	Long:  "Walks the listing pages for a search, extracts every detail page, and writes the final table plus per-batch checkpoints to the output directory.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if scrapeExcludeFile != "" {
			cfg.Links.ExclusionFile = scrapeExcludeFile
		}
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := os.MkdirAll(cfg.Run.OutputDir, 0o755); err != nil {
			return eris.Wrap(err, "create output dir")
		}

		env, err := initHarvest(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		parallelism := scrapeParallelism
		if parallelism == 0 {
			parallelism = cfg.Run.Parallelism
		}

		summary, err := env.Coordinator.Run(ctx, model.ScrapeRequest{
			SearchTerm:  scrapeTerm,
			Location:    scrapeLocation,
			Parallelism: parallelism,
			MaxPages:    scrapeMaxPages,
		})
		if err != nil {
			zap.L().Error("scrape failed", zap.Error(err))
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeTerm, "term", "", "search term, e.g. \"plumbers\"")
	scrapeCmd.Flags().StringVar(&scrapeLocation, "location", "", "geo location, e.g. \"Tulsa, OK\"")
	scrapeCmd.Flags().IntVar(&scrapeParallelism, "parallelism", 0, "concurrent listing pages per batch (default from config)")
	scrapeCmd.Flags().IntVar(&scrapeMaxPages, "max-pages", 0, "cap on listing pages (0 = all advertised)")
	scrapeCmd.Flags().StringVar(&scrapeExcludeFile, "exclude-file", "", "YAML file with additional link-exclusion globs")
	_ = scrapeCmd.MarkFlagRequired("term")
	_ = scrapeCmd.MarkFlagRequired("location")
	rootCmd.AddCommand(scrapeCmd)
}
