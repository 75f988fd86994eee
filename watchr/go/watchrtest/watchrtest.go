// Package watchrtest has helpers for building reports and data directories
// in tests.
package watchrtest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/config"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/report"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/types"
	"github.com/stretchr/testify/require"
)

// Config returns a config for a fresh data directory that is removed when
// the test ends.
func Config(t testing.TB) *config.InstanceConfig {
	return config.New(filepath.Join(t.TempDir(), "data"))
}

// Report returns a report with the given name and date.
func Report(name, date string, children ...*report.Element) *report.Report {
	return &report.Report{
		Element: report.Element{
			Name:     name,
			Date:     date,
			Category: types.PerformanceReport,
			Children: children,
		},
		Filename: name + ".json",
	}
}

// Timing returns a timing element with the given measurements.
func Timing(name string, attrs map[string]float64, children ...*report.Element) *report.Element {
	return &report.Element{
		Name:       name,
		Category:   types.Timing,
		Attributes: attrs,
		Children:   children,
	}
}

// Metric returns a metric element with a single "value" measurement.
func Metric(name, units string, value float64) *report.Element {
	return &report.Element{
		Name:       name,
		Category:   types.Metric,
		Units:      units,
		Attributes: map[string]float64{"value": value},
	}
}

// WriteReport writes r as JSON into dir and returns the file name.
func WriteReport(t testing.TB, dir string, r *report.Report) string {
	b, err := json.Marshal(r)
	require.NoError(t, err)
	filename := filepath.Join(dir, r.Filename)
	require.NoError(t, os.WriteFile(filename, b, 0644))
	return filename
}
