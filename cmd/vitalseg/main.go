package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/chrissnell/vitalseg/internal/app"
	"github.com/chrissnell/vitalseg/internal/log"
	"github.com/chrissnell/vitalseg/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source:\n\t\t\t  YAML: config.yaml\n\t\t\t  SQLite: config.db\n\t\t\t  Use 'config-convert' tool to convert YAML→SQLite")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")

	input := flag.String("input", "", "Analyze this CSV file once and exit instead of running the service")
	seriesName := flag.String("series", "", "Series to select from a three-column CSV file")
	profile := flag.String("profile", config.DefaultProfile, "Analysis profile for -input")
	events := flag.String("events", "", "Optional CSV file of event timestamps for -input")
	format := flag.String("format", "json", "Output format for -input: 'json' or 'msgpack'")
	output := flag.String("output", "", "Write the -input result to this file instead of stdout")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vitalseg %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *input != "" {
		opts := analyzeOptions{
			Input:   *input,
			Series:  *seriesName,
			Profile: *profile,
			Events:  *events,
			Format:  *format,
		}

		// A configuration file is optional here; without one only the built-in profiles exist
		if _, err := os.Stat(*cfgFile); err == nil {
			provider, err := loadConfig(*cfgFile, *cfgBackend)
			if err != nil {
				log.Errorf("Failed to load configuration: %v", err)
				os.Exit(1)
			}
			defer provider.Close()
			opts.Provider = provider
		}

		if err := runAnalyze(context.Background(), opts, *output); err != nil {
			log.Errorf("Analysis failed: %v", err)
			os.Exit(1)
		}
		return
	}

	// Load configuration
	provider, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	defer provider.Close()

	// Create and run the application
	application := app.New(provider, log.GetSugaredLogger())
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}

func loadConfig(cfgFile, cfgBackend string) (config.ConfigProvider, error) {
	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider
	var err error

	switch cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		provider, err = config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}

	if _, err := provider.LoadConfig(); err != nil {
		provider.Close()
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	return provider, nil
}
