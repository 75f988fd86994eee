package viewstore

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
	"github.com/sandialabs/watchr-jenkins-sub000/go/util"
)

// FileStore implements Store with an in-memory list written to a single JSON
// file on Close.
type FileStore struct {
	filename string

	mutex sync.Mutex
	open  bool
	views []*View
}

// New returns a FileStore backed by filename. Call Open before use.
func New(filename string) *FileStore {
	return &FileStore{
		filename: filename,
	}
}

// Open loads the stored views. A missing file is an empty collection.
// Returns false if the store was already open.
func (s *FileStore) Open(ctx context.Context) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.open {
		return false, nil
	}
	views := []*View{}
	err := util.WithReadFile(s.filename, func(r io.Reader) error {
		var all []*View
		if err := json.NewDecoder(r).Decode(&all); err != nil {
			return skerr.Wrapf(err, "Failed to decode %s", s.filename)
		}
		for _, v := range all {
			if v == nil {
				continue
			}
			if _, err := uuid.Parse(v.UUID); err != nil {
				sklog.Warningf("Dropping view %q with invalid UUID %q", v.Name, v.UUID)
				continue
			}
			views = append(views, v)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return false, skerr.Wrapf(err, "Failed to open view store")
	}
	s.views = views
	s.open = true
	return true, nil
}

// Close writes the views to disk. Returns false if the store was not open.
func (s *FileStore) Close(ctx context.Context) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return false, nil
	}
	s.open = false
	views := s.views
	s.views = nil
	if err := os.MkdirAll(filepath.Dir(s.filename), 0755); err != nil {
		return true, skerr.Wrapf(err, "Failed to create directory for %s", s.filename)
	}
	err := util.WithWriteFile(s.filename, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	})
	if err != nil {
		return true, skerr.Wrapf(err, "Failed to write view store")
	}
	return true, nil
}

func (s *FileStore) indexLocked(id string) int {
	for i, v := range s.views {
		if v.UUID == id {
			return i
		}
	}
	return -1
}

func (s *FileStore) nameTakenLocked(name, ignoreID string) bool {
	for _, v := range s.views {
		if v.Name == name && v.UUID != ignoreID {
			return true
		}
	}
	return false
}

// GetViews implements Store.
func (s *FileStore) GetViews(ctx context.Context) ([]*View, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return nil, ErrNotOpen
	}
	ret := make([]*View, 0, len(s.views))
	for _, v := range s.views {
		ret = append(ret, v.Copy())
	}
	return ret, nil
}

// FindView implements Store.
func (s *FileStore) FindView(ctx context.Context, name string) (*View, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return nil, ErrNotOpen
	}
	for _, v := range s.views {
		if v.Name == name {
			return v.Copy(), nil
		}
	}
	return nil, nil
}

// GetView implements Store.
func (s *FileStore) GetView(ctx context.Context, id string) (*View, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return nil, ErrNotOpen
	}
	i := s.indexLocked(id)
	if i < 0 {
		return nil, ErrViewNotFound
	}
	return s.views[i].Copy(), nil
}

func (s *FileStore) addLocked(v *View, ignoreID string) error {
	if v == nil || v.Name == "" {
		return skerr.Fmt("A view must have a name")
	}
	if _, err := uuid.Parse(v.UUID); err != nil {
		return skerr.Wrapf(err, "View %q has an invalid UUID", v.Name)
	}
	if s.nameTakenLocked(v.Name, ignoreID) {
		return ErrDuplicateViewName
	}
	if s.indexLocked(v.UUID) >= 0 {
		return skerr.Fmt("A view with UUID %s already exists", v.UUID)
	}
	s.views = append(s.views, v.Copy())
	return nil
}

// AddView implements Store.
func (s *FileStore) AddView(ctx context.Context, v *View) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	return s.addLocked(v, "")
}

func (s *FileStore) deleteLocked(id string) {
	if i := s.indexLocked(id); i >= 0 {
		s.views = append(s.views[:i], s.views[i+1:]...)
	}
}

// DeleteView implements Store.
func (s *FileStore) DeleteView(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	s.deleteLocked(id)
	return nil
}

// ReplaceView implements Store. The replaced view's name does not count
// against v, so a view may be re-added under its old name. Nothing changes
// if v is rejected.
func (s *FileStore) ReplaceView(ctx context.Context, oldID string, v *View) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	if s.indexLocked(oldID) < 0 {
		return ErrViewNotFound
	}
	if v != nil && v.UUID == oldID {
		return skerr.Fmt("View %q must have a new UUID to replace %s", v.Name, oldID)
	}
	saved := append([]*View{}, s.views...)
	s.deleteLocked(oldID)
	if err := s.addLocked(v, oldID); err != nil {
		s.views = saved
		return err
	}
	return nil
}

// Assert that *FileStore implements Store.
var _ Store = (*FileStore)(nil)
