package filterstore

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
	"github.com/sandialabs/watchr-jenkins-sub000/go/util"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/types"
)

// FileStore implements Store by keeping the whole set in memory and writing
// it to a single JSON file on Close.
type FileStore struct {
	filename string

	mutex   sync.Mutex
	open    bool
	filters map[string]*FilterData
}

// New returns a FileStore backed by filename. Call Open before use.
func New(filename string) *FileStore {
	return &FileStore{
		filename: filename,
	}
}

// Open loads the stored set. A missing file is an empty set. Returns false
// if the store was already open.
func (s *FileStore) Open(ctx context.Context) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.open {
		return false, nil
	}
	filters := map[string]*FilterData{}
	err := util.WithReadFile(s.filename, func(r io.Reader) error {
		var all []*FilterData
		if err := json.NewDecoder(r).Decode(&all); err != nil {
			return skerr.Wrapf(err, "Failed to decode %s", s.filename)
		}
		for _, f := range all {
			if f == nil {
				continue
			}
			f.Path = key(f.Path)
			filters[f.Path] = f
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return false, skerr.Wrapf(err, "Failed to open filter store")
	}
	s.filters = filters
	s.open = true
	sklog.Debugf("Opened filter store %s with %d entries", s.filename, len(filters))
	return true, nil
}

// Close writes the set to disk. Returns false if the store was not open.
func (s *FileStore) Close(ctx context.Context) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return false, nil
	}
	s.open = false
	all := s.sortedLocked()
	s.filters = nil
	if err := os.MkdirAll(filepath.Dir(s.filename), 0755); err != nil {
		return true, skerr.Wrapf(err, "Failed to create directory for %s", s.filename)
	}
	err := util.WithWriteFile(s.filename, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	})
	if err != nil {
		return true, skerr.Wrapf(err, "Failed to write filter store")
	}
	return true, nil
}

func (s *FileStore) sortedLocked() []*FilterData {
	ret := make([]*FilterData, 0, len(s.filters))
	for _, f := range s.filters {
		ret = append(ret, f)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Path < ret[j].Path
	})
	return ret
}

// GetFilterData implements Store.
func (s *FileStore) GetFilterData(ctx context.Context) ([]*FilterData, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return nil, ErrNotOpen
	}
	ret := s.sortedLocked()
	for i, f := range ret {
		ret[i] = f.Copy()
	}
	return ret, nil
}

// GetFilterDataByPath implements Store. When several stored paths trail
// path, the longest one wins.
func (s *FileStore) GetFilterDataByPath(ctx context.Context, path string, exactMatch bool) (*FilterData, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return nil, ErrNotOpen
	}
	if f, ok := s.filters[key(path)]; ok {
		return f.Copy(), nil
	}
	if exactMatch {
		return nil, nil
	}
	var best *FilterData
	for _, f := range s.filters {
		if !isTrailingPath(path, f.Path) {
			continue
		}
		if best == nil || len(f.Path) > len(best.Path) {
			best = f
		}
	}
	if best == nil {
		return nil, nil
	}
	return best.Copy(), nil
}

// FilteredDates implements Store.
func (s *FileStore) FilteredDates(ctx context.Context, path string) ([]string, error) {
	f, err := s.GetFilterDataByPath(ctx, path, false)
	if err != nil || f == nil {
		return nil, err
	}
	return f.FilteredDates, nil
}

// normalized returns the unique normalized dates, sorted.
func normalized(dates []string) []string {
	seen := map[string]bool{}
	ret := []string{}
	for _, d := range dates {
		n := types.NormalizeDate(d)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		ret = append(ret, n)
	}
	sort.Strings(ret)
	return ret
}

func (s *FileStore) setLocked(path string, dates []string) {
	path = key(path)
	dates = normalized(dates)
	if len(dates) == 0 {
		delete(s.filters, path)
		return
	}
	s.filters[path] = &FilterData{
		Path:          path,
		FilteredDates: dates,
	}
}

// SetFilteredDates implements Store.
func (s *FileStore) SetFilteredDates(ctx context.Context, path string, dates []string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	s.setLocked(path, dates)
	return nil
}

// AddFilteredDates implements Store.
func (s *FileStore) AddFilteredDates(ctx context.Context, path string, dates ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	var existing []string
	if f, ok := s.filters[key(path)]; ok {
		existing = f.FilteredDates
	}
	s.setLocked(path, append(append([]string{}, existing...), dates...))
	return nil
}

// RemoveFilteredDates implements Store.
func (s *FileStore) RemoveFilteredDates(ctx context.Context, path string, dates ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	f, ok := s.filters[key(path)]
	if !ok {
		return nil
	}
	remove := map[string]bool{}
	for _, d := range dates {
		remove[types.NormalizeDate(d)] = true
	}
	keep := []string{}
	for _, d := range f.FilteredDates {
		if !remove[d] {
			keep = append(keep, d)
		}
	}
	s.setLocked(path, keep)
	return nil
}

// DeleteFilterData implements Store.
func (s *FileStore) DeleteFilterData(ctx context.Context, path string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	delete(s.filters, key(path))
	return nil
}

// Assert that *FileStore implements Store.
var _ Store = (*FileStore)(nil)
