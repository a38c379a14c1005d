package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Comparison Test")
	fmt.Println("===========================")

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlConfig, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	// Load SQLite configuration
	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nComparison Results:")
	fmt.Println("==================")
	if !compareConfigs(os.Stdout, yamlConfig, sqliteConfig) {
		os.Exit(1)
	}
}

// compareConfigs reports every section that differs between the two
// configurations and returns true when they match
func compareConfigs(w io.Writer, yamlConfig, sqliteConfig *config.ConfigData) bool {
	// SQLite returns empty slices where YAML leaves them nil
	opts := cmpopts.EquateEmpty()

	sections := []struct {
		name         string
		yaml, sqlite any
	}{
		{"Profiles", yamlConfig.Profiles, sqliteConfig.Profiles},
		{"Series", yamlConfig.Series, sqliteConfig.Series},
		{"Storage", yamlConfig.Storage, sqliteConfig.Storage},
		{"Controllers", yamlConfig.Controllers, sqliteConfig.Controllers},
	}

	match := true
	for _, s := range sections {
		if diff := cmp.Diff(s.yaml, s.sqlite, opts); diff != "" {
			fmt.Fprintf(w, "✗ %s differ (-yaml +sqlite):\n%s\n", s.name, diff)
			match = false
			continue
		}
		fmt.Fprintf(w, "✓ %s match\n", s.name)
	}

	for _, p := range sqliteConfig.Profiles {
		if _, err := p.SegmentConfig(); err != nil {
			fmt.Fprintf(w, "✗ %v\n", err)
			match = false
		}
	}

	return match
}
