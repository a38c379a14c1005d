// Package series loads sample series for the segmentation engine and applies
// the loader side of the data contract: ordering, de-duplication and removal of
// non-finite values.
package series

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/vitalseg/internal/segment"
)

// Source fetches the samples of one series within [from, to). A zero from or
// to leaves that side unbounded.
type Source interface {
	Fetch(ctx context.Context, series string, from, to time.Time) ([]segment.Sample, error)
}

// CleanReport counts what Clean removed
type CleanReport struct {
	NonFinite  int  `json:"non_finite"`
	Duplicates int  `json:"duplicates"`
	Reordered  bool `json:"reordered"`
}

// Dropped is the number of samples Clean removed
func (r CleanReport) Dropped() int {
	return r.NonFinite + r.Duplicates
}

// Clean sorts samples by time, drops NaN and infinite values and collapses
// samples sharing a timestamp to the last one read. The input is not modified.
func Clean(samples []segment.Sample) ([]segment.Sample, CleanReport) {
	var report CleanReport

	out := make([]segment.Sample, 0, len(samples))
	for _, s := range samples {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			report.NonFinite++
			continue
		}
		out = append(out, s)
	}

	if !sort.SliceIsSorted(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) }) {
		report.Reordered = true
		sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	}

	deduped := out[:0]
	for _, s := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Time.Equal(s.Time) {
			deduped[n-1] = s
			report.Duplicates++
			continue
		}
		deduped = append(deduped, s)
	}

	return deduped, report
}

// inRange reports whether t lies in [from, to) with zero bounds open
func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// ParseTime accepts RFC 3339 timestamps, SQL style timestamps (read as UTC) and
// unix epoch seconds with an optional fraction
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// toTime converts a scanned database value into a time
func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case float64:
		return ParseTime(strconv.FormatFloat(t, 'f', -1, 64))
	case string:
		return ParseTime(t)
	case []byte:
		return ParseTime(string(t))
	default:
		return time.Time{}, fmt.Errorf("unsupported time value of type %T", v)
	}
}

// toFloat converts a scanned database value into a float
func toFloat(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case int64:
		return float64(f), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(f), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(f)), 64)
	case nil:
		return math.NaN(), nil
	default:
		return 0, fmt.Errorf("unsupported value of type %T", v)
	}
}
