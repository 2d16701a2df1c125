package main

import (
	"fmt"
	"os"
	"runtime"

	"archivescraper/pkg/config"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logDir     string
	quiet      bool
	verbose    bool

	printer = ui.NewPrinter(os.Stdout, false)
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "archivescraper",
	Short: "Harvest media and outbound links from a forum archive",
	Long: `Archive Scraper walks the search listing of a forum archive page by page,
visits every thread it finds and stores each reply's attachment under
data/<thread>/ together with a log of the outbound links people posted.

Requests are paced by a token bucket with random jitter and failed requests
are retried a fixed number of times, so a crawl can run unattended.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		printer = ui.NewPrinter(os.Stdout, quiet)
		if verbose && !cmd.Flags().Changed("log-level") {
			logLevel = "debug"
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printer.Error("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/archivescraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error, fatal, disabled)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "also write daily log files to this directory")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.SetVersionTemplate(`Archive Scraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// collectFlags returns the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects.
func collectFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("log-level") || verbose {
		flags["log-level"] = logLevel
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "start-page", "end-page", "max-retries", "workers":
			if v, err := cmd.Flags().GetInt(f.Name); err == nil {
				flags[f.Name] = v
			}
		case "search-url", "thread-url", "data-dir", "metrics-addr", "log-dir":
			flags[f.Name] = f.Value.String()
		}
	})
	return flags
}

// setup loads configuration and initializes the global logger
func setup(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, collectFlags(cmd))
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
