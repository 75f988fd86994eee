// Package types holds the small closed enums and date handling shared by the
// watchr packages.
package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
)

// Category is the kind of data a LevelNode holds.
//
// It is an int, but will serialize to/from a string in JSON.
type Category int

const (
	PerformanceReport Category = iota
	Timing
	Metric
	Metadata
	EOLCategory // End of list.
)

// String returns the keyword used for the category in stored records.
func (c Category) String() string {
	switch c {
	case PerformanceReport:
		return "performance-report"
	case Timing:
		return "timing"
	case Metric:
		return "metric"
	case Metadata:
		return "metadata"
	}
	return "unknown"
}

// ParseCategory converts a keyword into a Category.
func ParseCategory(s string) (Category, error) {
	for c := Category(0); c < EOLCategory; c++ {
		if c.String() == strings.ToLower(strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return PerformanceReport, skerr.Fmt("Unknown category %q", s)
}

// UnmarshalJSON will decode invalid values as PerformanceReport.
func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*c, _ = ParseCategory(s)
	return nil
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// DatasetType selects which series of a measurement a View displays.
type DatasetType int

const (
	Value DatasetType = iota
	Average
	StdDev
	EOLDatasetType // End of list.
)

func (d DatasetType) String() string {
	switch d {
	case Value:
		return "value"
	case Average:
		return "average"
	case StdDev:
		return "std"
	}
	return "unknown"
}

// ParseDatasetType converts a string into a DatasetType.
func ParseDatasetType(s string) (DatasetType, error) {
	for d := DatasetType(0); d < EOLDatasetType; d++ {
		if d.String() == strings.ToLower(strings.TrimSpace(s)) {
			return d, nil
		}
	}
	return Value, skerr.Fmt("Unknown dataset type %q", s)
}

// UnmarshalJSON will decode invalid values as Value.
func (d *DatasetType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*d, _ = ParseDatasetType(s)
	return nil
}

func (d DatasetType) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

const (
	// DateLayout is the layout of every date key. Keys in this layout sort
	// lexically in chronological order.
	DateLayout = "2006-01-02T15:04:05"

	// legacyDateLayout uses a space instead of 'T'.
	legacyDateLayout = "2006-01-02 15:04:05"

	dateLen = len(DateLayout)
)

// NormalizeDate truncates a date string to the comparable prefix and
// replaces a legacy space separator with 'T'. Strings shorter than a full
// date are returned unchanged apart from the separator.
func NormalizeDate(date string) string {
	if len(date) > dateLen {
		date = date[:dateLen]
	}
	if len(date) > 10 && date[10] == ' ' {
		date = date[:10] + "T" + date[11:]
	}
	return date
}

// CompareDates compares two dates by their normalized form, returning -1, 0
// or 1.
func CompareDates(a, b string) int {
	return strings.Compare(NormalizeDate(a), NormalizeDate(b))
}

// ParseDate parses a date in either the current or the legacy layout.
func ParseDate(date string) (time.Time, error) {
	n := NormalizeDate(date)
	if len(n) == 10 {
		t, err := time.Parse("2006-01-02", n)
		return t, skerr.Wrapf(err, "Invalid date %q", date)
	}
	t, err := time.Parse(DateLayout, n)
	if err != nil {
		if t2, err2 := time.Parse(legacyDateLayout, date); err2 == nil {
			return t2, nil
		}
		return time.Time{}, skerr.Wrapf(err, "Invalid date %q", date)
	}
	return t, nil
}

// FormatDate formats t as a date key.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// InRange returns true if date lies within [min, max] inclusive, comparing
// normalized forms.
func InRange(date, min, max string) bool {
	return CompareDates(date, min) >= 0 && CompareDates(date, max) <= 0
}

// DateBounds tracks the smallest and largest date seen. The zero value is
// unset: Min starts above and Max below every real date.
type DateBounds struct {
	Min string
	Max string
	set bool
}

// Extend widens the bounds to include date.
func (d *DateBounds) Extend(date string) {
	n := NormalizeDate(date)
	if !d.set {
		d.Min, d.Max, d.set = n, n, true
		return
	}
	if n < d.Min {
		d.Min = n
	}
	if n > d.Max {
		d.Max = n
	}
}

// IsSet returns true once Extend has been called.
func (d DateBounds) IsSet() bool {
	return d.set
}

// Reset returns the bounds to the unset state.
func (d *DateBounds) Reset() {
	*d = DateBounds{}
}
