package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/vitalseg/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := convert(*yamlFile, *sqliteFile, *force, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// convert copies the YAML configuration into a freshly migrated SQLite database
func convert(yamlFile, sqliteFile string, force, dryRun bool) error {
	// Check if YAML file exists
	if _, err := os.Stat(yamlFile); os.IsNotExist(err) {
		return fmt.Errorf("YAML file does not exist: %s", yamlFile)
	}

	// Check if SQLite file already exists
	if _, err := os.Stat(sqliteFile); err == nil && !force {
		return fmt.Errorf("SQLite file already exists: %s (use -force to overwrite or choose a different filename)", sqliteFile)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", yamlFile)
	fmt.Printf("  Target: %s\n", sqliteFile)

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration...\n")
	configData, err := config.NewYAMLProvider(yamlFile).LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading YAML configuration: %w", err)
	}

	// Reject profiles the engine would refuse before anything is written
	for _, p := range configData.Profiles {
		if _, err := p.SegmentConfig(); err != nil {
			return err
		}
	}

	fmt.Printf("  Loaded %d profiles, %d series, %d controllers\n",
		len(configData.Profiles), len(configData.Series), len(configData.Controllers))

	if dryRun {
		fmt.Println("DRY RUN - No changes will be made")
		printConfigSummary(configData)
		fmt.Println("DRY RUN complete - no database created")
		return nil
	}

	// Remove existing SQLite file if force is specified
	if force {
		if err := os.Remove(sqliteFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("error removing existing SQLite file: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(sqliteFile), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// The provider runs the embedded schema migrations when it opens the database
	fmt.Printf("Creating SQLite database...\n")
	provider, err := config.NewSQLiteProvider(sqliteFile)
	if err != nil {
		return fmt.Errorf("failed to create SQLite provider: %w", err)
	}
	defer provider.Close()

	fmt.Printf("Loading configuration into SQLite database...\n")
	if err := provider.SaveConfig(configData); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", sqliteFile)
	return nil
}

func printConfigSummary(configData *config.ConfigData) {
	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("Profiles (%d):\n", len(configData.Profiles))
	for _, p := range configData.Profiles {
		fmt.Printf("  - %s (%g-%g %s)\n", p.Name, p.TargetLow, p.TargetHigh, p.Units)
	}

	fmt.Printf("\nSeries (%d):\n", len(configData.Series))
	for _, s := range configData.Series {
		fmt.Printf("  - %s [%s] profile=%s\n", s.Name, s.Source, s.Profile)
	}

	fmt.Printf("\nStorage Backends:\n")
	if configData.Storage.TimescaleDB != nil {
		fmt.Printf("  - TimescaleDB: %s\n", configData.Storage.TimescaleDB.ConnectionString)
	}
	if configData.Storage.SQLite != nil {
		fmt.Printf("  - SQLite: %s\n", configData.Storage.SQLite.Path)
	}

	fmt.Printf("\nControllers (%d):\n", len(configData.Controllers))
	for _, controller := range configData.Controllers {
		fmt.Printf("  - %s\n", controller.Type)
	}
}
