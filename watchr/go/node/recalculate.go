package node

import (
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/stats"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/types"
)

// RecalculateOptions controls Recalculate.
type RecalculateOptions struct {
	// RollingRange is the maximum number of points in each window. Values
	// below 1 are treated as 1.
	RollingRange int

	// MinDate and MaxDate bound the dates whose statistics are rewritten.
	// Points outside the bounds still contribute to windows.
	MinDate string
	MaxDate string

	// Excluded dates never contribute to a window.
	Excluded []string
}

// Recalculate rewrites Average and StdDev of every tuple whose date lies in
// [opts.MinDate, opts.MaxDate]. Each tuple gets the mean and population
// standard deviation of the opts.RollingRange most recent values of the same
// type at or before its date, skipping excluded dates. Returns the number of
// tuples updated.
func (l *LevelNode) Recalculate(opts RecalculateOptions) int {
	rollingRange := opts.RollingRange
	if rollingRange < 1 {
		rollingRange = 1
	}
	excluded := dateSet(opts.Excluded)
	updated := 0

	for _, typ := range l.TupleTypes() {
		// Series of (date, tuple) for this type, oldest first.
		var dates []string
		var tuples []*MeasurementTuple
		for _, d := range l.dates {
			if t := l.records[d].Tuple(typ); t != nil {
				dates = append(dates, d)
				tuples = append(tuples, t)
			}
		}

		window := make([]float64, 0, rollingRange)
		for i := len(dates) - 1; i >= 0; i-- {
			if !types.InRange(dates[i], opts.MinDate, opts.MaxDate) {
				continue
			}
			window = window[:0]
			for j := i; j >= 0 && len(window) < rollingRange; j-- {
				if excluded[dates[j]] {
					continue
				}
				window = append(window, tuples[j].Value)
			}
			tuples[i].Average, tuples[i].StdDev = stats.MeanAndStdDev(window)
			updated++
		}
	}
	return updated
}
