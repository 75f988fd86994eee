// Package node holds the data for one level of the report hierarchy.
//
// A LevelNode is keyed by its path relative to the tree root and keeps one
// NodeRecord per date. Dates are kept sorted so that the newest data point
// and trailing windows can be found without rescanning.
package node

import (
	"encoding/json"
	"sort"

	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/util"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/types"
)

// LevelNode is the full time series for one path of the hierarchy.
type LevelNode struct {
	Name     string
	Path     string
	Category types.Category

	records map[string]*NodeRecord
	// dates is the sorted set of keys of records.
	dates []string
}

// New returns an empty LevelNode.
func New(name, path string, category types.Category) *LevelNode {
	return &LevelNode{
		Name:     name,
		Path:     path,
		Category: category,
		records:  map[string]*NodeRecord{},
	}
}

// Put stores the record for the given date, replacing any existing record.
func (l *LevelNode) Put(date string, r *NodeRecord) {
	date = types.NormalizeDate(date)
	if _, ok := l.records[date]; !ok {
		i := sort.SearchStrings(l.dates, date)
		l.dates = append(l.dates, "")
		copy(l.dates[i+1:], l.dates[i:])
		l.dates[i] = date
	}
	l.records[date] = r
}

// Get returns the record at the given date, or nil.
func (l *LevelNode) Get(date string) *NodeRecord {
	return l.records[types.NormalizeDate(date)]
}

// Dates returns all dates in ascending order.
func (l *LevelNode) Dates() []string {
	ret := make([]string, len(l.dates))
	copy(ret, l.dates)
	return ret
}

// Len returns the number of dates.
func (l *LevelNode) Len() int {
	return len(l.dates)
}

// DateRange returns the oldest and newest dates. ok is false if there are
// no dates.
func (l *LevelNode) DateRange() (oldest, newest string, ok bool) {
	if len(l.dates) == 0 {
		return "", "", false
	}
	return l.dates[0], l.dates[len(l.dates)-1], true
}

// LatestDate returns the newest date, or "" if there are none.
func (l *LevelNode) LatestDate() string {
	if len(l.dates) == 0 {
		return ""
	}
	return l.dates[len(l.dates)-1]
}

// TupleTypes returns every measurement type present at any date, sorted.
func (l *LevelNode) TupleTypes() []string {
	seen := map[string]bool{}
	for _, r := range l.records {
		for k := range r.Tuples {
			seen[k] = true
		}
	}
	ret := make([]string, 0, len(seen))
	for k := range seen {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// IsEmptyDataSet returns true if no date has a non-empty tuple of the given
// type.
func (l *LevelNode) IsEmptyDataSet(typ string) bool {
	for _, d := range l.dates {
		if !l.records[d].Tuple(typ).IsEmpty() {
			return false
		}
	}
	return true
}

// IsEmptyDataSetInDateRange is IsEmptyDataSet restricted to dates in
// [minDate, maxDate]. Returns an error if either bound is not a valid date.
func (l *LevelNode) IsEmptyDataSetInDateRange(typ, minDate, maxDate string) (bool, error) {
	if _, err := types.ParseDate(minDate); err != nil {
		return true, skerr.Wrapf(err, "Bad minimum date")
	}
	if _, err := types.ParseDate(maxDate); err != nil {
		return true, skerr.Wrapf(err, "Bad maximum date")
	}
	for _, d := range l.dates {
		if !types.InRange(d, minDate, maxDate) {
			continue
		}
		if !l.records[d].Tuple(typ).IsEmpty() {
			return false, nil
		}
	}
	return true, nil
}

// IsEmpty returns true if there are no dates or every tuple at every date is
// empty.
func (l *LevelNode) IsEmpty() bool {
	for _, d := range l.dates {
		if !l.records[d].IsEmpty() {
			return false
		}
	}
	return true
}

// latestVisibleDate returns the newest date not in ignore.
func (l *LevelNode) latestVisibleDate(ignore map[string]bool) (string, bool) {
	for i := len(l.dates) - 1; i >= 0; i-- {
		if !ignore[l.dates[i]] {
			return l.dates[i], true
		}
	}
	return "", false
}

func dateSet(dates []string) map[string]bool {
	ret := make(map[string]bool, len(dates))
	for _, d := range dates {
		ret[types.NormalizeDate(d)] = true
	}
	return ret
}

// DataIsFailure returns true if the newest date not in datesToIgnore has a
// value of the given type above its rolling average (when avgFailIfGreater)
// or above average plus standard deviation (when stdDevFailIfGreater).
func (l *LevelNode) DataIsFailure(typ string, avgFailIfGreater, stdDevFailIfGreater bool, datesToIgnore []string) bool {
	if l.IsEmptyDataSet(typ) {
		return false
	}
	date, ok := l.latestVisibleDate(dateSet(datesToIgnore))
	if !ok {
		return false
	}
	t := l.records[date].Tuple(typ)
	if t == nil {
		return false
	}
	return (avgFailIfGreater && t.Value > t.Average) ||
		(stdDevFailIfGreater && t.Value > t.Average+t.StdDev)
}

// RangeQuery controls GetDatesInRange.
type RangeQuery struct {
	// TimeScale is how many of the newest dates to consider. Zero or less
	// means the whole history.
	TimeScale int

	// EnableAvg includes the rolling average.
	EnableAvg bool

	// EnableStdDev includes the rolling standard deviation, reported as an
	// offset from the average.
	EnableStdDev bool

	// RoundTo is the number of decimal places values are rounded to.
	RoundTo int

	// Filtered are dates that are never returned.
	Filtered []string
}

// DateEntry is one point returned by GetDatesInRange.
type DateEntry struct {
	Date  string
	Value float64

	// Average is nil unless RangeQuery.EnableAvg.
	Average *float64

	// StdDev is average + standard deviation, nil unless
	// RangeQuery.EnableStdDev.
	StdDev *float64

	Metadata map[string]string
}

type momentTupleJSON struct {
	Value   jsonFloat  `json:"value"`
	Average *jsonFloat `json:"average,omitempty"`
	StdDev  *jsonFloat `json:"std,omitempty"`
}

type dateEntryJSON struct {
	MomentTuple momentTupleJSON   `json:"momentTuple"`
	Metadata    map[string]string `json:"metadata"`
}

// MarshalJSON encodes the entry as {date: {"momentTuple": {...}, "metadata": {...}}}.
func (d DateEntry) MarshalJSON() ([]byte, error) {
	body := dateEntryJSON{
		MomentTuple: momentTupleJSON{Value: jsonFloat(d.Value)},
		Metadata:    d.Metadata,
	}
	if body.Metadata == nil {
		body.Metadata = map[string]string{}
	}
	if d.Average != nil {
		v := jsonFloat(*d.Average)
		body.MomentTuple.Average = &v
	}
	if d.StdDev != nil {
		v := jsonFloat(*d.StdDev)
		body.MomentTuple.StdDev = &v
	}
	return json.Marshal(map[string]dateEntryJSON{d.Date: body})
}

// GetDatesInRange returns the points of the given measurable within the
// trailing q.TimeScale dates, oldest first, skipping q.Filtered dates.
func (l *LevelNode) GetDatesInRange(measurable string, q RangeQuery) []DateEntry {
	ret := []DateEntry{}
	if l.IsEmptyDataSet(measurable) {
		return ret
	}
	latest := l.dates[len(l.dates)-1]
	oldestIdx := 0
	if q.TimeScale > 0 && q.TimeScale < len(l.dates) {
		oldestIdx = len(l.dates) - q.TimeScale
	}
	oldest := l.dates[oldestIdx]
	filtered := dateSet(q.Filtered)

	for _, d := range l.dates[oldestIdx:] {
		if filtered[d] || !types.InRange(d, oldest, latest) {
			continue
		}
		r := l.records[d]
		t := r.Tuple(measurable)
		if t == nil {
			continue
		}
		entry := DateEntry{
			Date:     d,
			Value:    util.Round(t.Value, q.RoundTo),
			Metadata: copyMetadata(r.Metadata),
		}
		if q.EnableAvg {
			avg := util.Round(t.Average, q.RoundTo)
			entry.Average = &avg
		}
		if q.EnableStdDev {
			std := util.Round(t.Average+t.StdDev, q.RoundTo)
			entry.StdDev = &std
		}
		ret = append(ret, entry)
	}
	return ret
}

// Values returns the value of the given type at each date that has it,
// oldest first, alongside the matching dates.
func (l *LevelNode) Values(typ string) ([]string, []float64) {
	dates := []string{}
	values := []float64{}
	for _, d := range l.dates {
		if t := l.records[d].Tuple(typ); t != nil {
			dates = append(dates, d)
			values = append(values, t.Value)
		}
	}
	return dates, values
}

func copyMetadata(m map[string]string) map[string]string {
	ret := make(map[string]string, len(m))
	for k, v := range m {
		ret[k] = v
	}
	return ret
}

// Equal returns true if both nodes hold the same identity and data.
func (l *LevelNode) Equal(o *LevelNode) bool {
	if l == nil || o == nil {
		return l == o
	}
	if l.Name != o.Name || l.Path != o.Path || l.Category != o.Category || len(l.dates) != len(o.dates) {
		return false
	}
	for i, d := range l.dates {
		if o.dates[i] != d || !l.records[d].Equal(o.records[d]) {
			return false
		}
	}
	return true
}
