package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"archivescraper/pkg/crawler"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/metrics"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl listing pages and store media and hyperlinks",
	Long: `Crawl the archive's search listing from the start page to the end page
inclusive. Every reply with an attachment is saved as
<data-dir>/<thread>/<thread>-<post>-.<ext>; files already on disk are left
alone. Outbound links are appended to the hyperlink log.`,
	Example: `  # Crawl the configured page range
  archivescraper crawl

  # Crawl pages 10 to 12 into ./out and expose metrics
  archivescraper crawl --start-page 10 --end-page 12 --data-dir ./out --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().Int("start-page", 0, "first listing page to crawl")
	crawlCmd.Flags().Int("end-page", 0, "last listing page to crawl (inclusive)")
	crawlCmd.Flags().String("search-url", "", "base URL of the search listing")
	crawlCmd.Flags().String("thread-url", "", "base URL thread ids are appended to")
	crawlCmd.Flags().String("data-dir", "", "directory media and the hyperlink log are written to")
	crawlCmd.Flags().Int("max-retries", 0, "attempts per request before giving up")
	crawlCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	printer.Banner()
	printer.Info("Pages", fmt.Sprintf("%d-%d", cfg.Archive.StartPage, cfg.Archive.EndPage))
	printer.Info("Data directory", cfg.Output.DataDirectory)
	printer.Info("Hyperlink log", cfg.HyperlinkPath())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Address != "" {
		m = metrics.New()
		printer.Info("Metrics", "http://"+cfg.Metrics.Address+"/metrics")
	}

	c := crawler.NewFromConfig(cfg, log, m)
	log.WithField("version", version).WithField("run_id", c.RunID()).Info("Archive Scraper starting")

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServe := context.WithCancel(gctx)
	defer stopServe()

	var summary crawler.Summary
	g.Go(func() error {
		defer stopServe()
		var err error
		summary, err = c.Run(gctx)
		return err
	})
	if m != nil {
		g.Go(func() error {
			return serveMetrics(serveCtx, cfg.Metrics.Address, m, log)
		})
	}

	err = g.Wait()
	printer.Summary("Crawl summary", summary.Fields())

	switch {
	case errors.Is(err, context.Canceled):
		printer.Warning("Crawl interrupted")
		return nil
	case err != nil:
		return err
	}
	printer.Success("Crawl complete")
	return nil
}
