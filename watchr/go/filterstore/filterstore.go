// Package filterstore keeps the dates a user has hidden for each path of the
// hierarchy. Hidden dates stay on disk but are left out of displays and, by
// default, out of rolling statistics.
package filterstore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrNotOpen is returned by stores used before Open or after Close.
var ErrNotOpen = errors.New("filter store is not open")

// FilterData is the set of hidden dates for one path. Two FilterData are
// the same entry if their paths are equal.
type FilterData struct {
	Path          string   `json:"path"`
	FilteredDates []string `json:"filteredDates"`
}

// Copy returns a deep copy.
func (f *FilterData) Copy() *FilterData {
	dates := make([]string, len(f.FilteredDates))
	copy(dates, f.FilteredDates)
	return &FilterData{
		Path:          f.Path,
		FilteredDates: dates,
	}
}

// Store is the interface used to persist FilterData. Paths are stored in
// cleaned, slash separated form. The tree root is the empty path, and "."
// names it too.
type Store interface {
	// GetFilterData returns every entry, sorted by path.
	GetFilterData(ctx context.Context) ([]*FilterData, error)

	// GetFilterDataByPath returns the entry for path. If exactMatch is false
	// an entry whose stored path is a trailing part of path also matches,
	// which lets an absolute path find an entry stored relative to the tree
	// root. Returns nil, nil if nothing matches.
	GetFilterDataByPath(ctx context.Context, path string, exactMatch bool) (*FilterData, error)

	// FilteredDates is GetFilterDataByPath with exactMatch false, returning
	// only the dates.
	FilteredDates(ctx context.Context, path string) ([]string, error)

	// SetFilteredDates replaces the hidden dates for path. An empty list
	// removes the entry.
	SetFilteredDates(ctx context.Context, path string, dates []string) error

	// AddFilteredDates hides more dates for path.
	AddFilteredDates(ctx context.Context, path string, dates ...string) error

	// RemoveFilteredDates un-hides dates for path.
	RemoveFilteredDates(ctx context.Context, path string, dates ...string) error

	// DeleteFilterData removes the entry for path.
	DeleteFilterData(ctx context.Context, path string) error
}

// cleanPath puts a path into the form used for comparisons.
func cleanPath(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}

// key returns the form path is stored under.
func key(path string) string {
	k := cleanPath(path)
	if k == "." {
		return ""
	}
	return k
}

// isTrailingPath returns true if stored names the same location as path or
// the trailing segments of it.
func isTrailingPath(path, stored string) bool {
	path, stored = key(path), key(stored)
	if path == stored {
		return true
	}
	if stored == "" {
		return false
	}
	return strings.HasSuffix(path, "/"+strings.TrimPrefix(stored, "/"))
}
