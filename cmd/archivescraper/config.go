package main

import (
	"fmt"
	"os"

	"archivescraper/pkg/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Archive Scraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (ARCHIVESCRAPER_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration as YAML. The file goes to the --config path
if given, otherwise to $XDG_CONFIG_HOME/archivescraper/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from every source and report every invalid value:
page range, rate limit, retry policy, output locations and log level.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	printer.Success("Configuration written to " + path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, collectFlags(cmd))
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(configFile, collectFlags(cmd)); err != nil {
		printer.Error("Configuration is invalid", err)
		return err
	}
	printer.Success("Configuration is valid")
	return nil
}
