package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chrissnell/vitalseg/internal/log"
	"github.com/chrissnell/vitalseg/internal/segment"
	"github.com/chrissnell/vitalseg/internal/series"
	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/chrissnell/vitalseg/pkg/responseformat"
)

// analyzeOptions describes a one-shot analysis of a CSV file
type analyzeOptions struct {
	Input    string
	Series   string
	Profile  string
	Events   string
	Format   string
	Provider config.ConfigProvider
}

// runAnalyze analyzes opts.Input and writes the result to path, or to stdout when path is empty
func runAnalyze(ctx context.Context, opts analyzeOptions, path string) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return analyzeFile(ctx, opts, w)
}

// analyzeFile loads, cleans and segments a CSV file and encodes the result to w.
// A low-confidence fallback result is still written.
func analyzeFile(ctx context.Context, opts analyzeOptions, w io.Writer) error {
	format, err := responseformat.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	profile, err := resolveProfile(opts.Provider, opts.Profile)
	if err != nil {
		return err
	}
	cfg, err := profile.SegmentConfig()
	if err != nil {
		return err
	}

	samples, err := series.NewCSVSource(opts.Input).Fetch(ctx, opts.Series, time.Time{}, time.Time{})
	if err != nil {
		return err
	}
	samples, report := series.Clean(samples)
	if report.Dropped() > 0 || report.Reordered {
		log.Warnf("cleaned %s: dropped %d non-finite and %d duplicate samples (reordered: %v)",
			opts.Input, report.NonFinite, report.Duplicates, report.Reordered)
	}

	var events []time.Time
	if opts.Events != "" {
		if events, err = series.ReadEventsFile(opts.Events); err != nil {
			return err
		}
	}

	result, err := segment.Analyze(ctx, samples, events, cfg, log.GetSugaredLogger())
	if err != nil {
		if !errors.Is(err, segment.ErrInsufficientData) {
			return err
		}
		log.Warn(err)
	}

	formatter := &responseformat.Formatter{Indent: true}
	if err := formatter.Encode(w, format, result); err != nil {
		return fmt.Errorf("error writing result: %w", err)
	}
	return nil
}

// resolveProfile looks name up in the provider, or among the built-in profiles
// when no configuration was loaded
func resolveProfile(provider config.ConfigProvider, name string) (*config.ProfileData, error) {
	if provider != nil {
		return provider.GetProfile(name)
	}
	for _, p := range config.BuiltinProfiles() {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", config.ErrProfileNotFound, name)
}
