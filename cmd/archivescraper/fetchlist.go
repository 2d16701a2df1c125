package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"archivescraper/pkg/crawler"
	"archivescraper/pkg/logger"

	"github.com/spf13/cobra"
)

// fetchListCmd represents the fetch-list command
var fetchListCmd = &cobra.Command{
	Use:   "fetch-list [file]",
	Short: "Download media named in a hyperlink list",
	Long: `Download every "<thread>-<post>: <url>" entry of a list file into the data
directory. The file defaults to the crawl's own hyperlink log. When a post
appears more than once its files are numbered -2, -3 and so on.`,
	Example: `  # Download everything in the default hyperlink log
  archivescraper fetch-list

  # Download a curated list with four workers
  archivescraper fetch-list media.txt --workers 4`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetchList,
}

func init() {
	rootCmd.AddCommand(fetchListCmd)

	fetchListCmd.Flags().Int("workers", 0, "number of concurrent download workers")
	fetchListCmd.Flags().String("data-dir", "", "directory media is written to")
	fetchListCmd.Flags().Int("max-retries", 0, "attempts per request before giving up")
}

func runFetchList(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	path := cfg.HyperlinkPath()
	if len(args) == 1 {
		path = args[0]
	}
	printer.Info("List", path)
	printer.Info("Data directory", cfg.Output.DataDirectory)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := crawler.NewFromConfig(cfg, log, nil)
	summary, err := c.ImportURLListFile(ctx, path, cfg.Download.Workers)
	printer.Summary("Import summary", summary.Fields())

	switch {
	case errors.Is(err, context.Canceled):
		printer.Warning("Import interrupted")
		return nil
	case err != nil:
		return err
	}
	printer.Success("Import complete")
	return nil
}
