// Package viewstore persists named collections of datasets that are plotted
// together.
package viewstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/types"
)

var (
	// ErrNotOpen is returned by stores used before Open or after Close.
	ErrNotOpen = errors.New("view store is not open")

	// ErrDuplicateViewName is returned when adding a View whose name is
	// already used by another View.
	ErrDuplicateViewName = errors.New("a view with that name already exists")

	// ErrViewNotFound is returned when a UUID does not name a stored View.
	ErrViewNotFound = errors.New("view not found")
)

// ViewDataset is one series of a View.
type ViewDataset struct {
	Path        string            `json:"path"`
	DatasetType types.DatasetType `json:"datasetType"`
}

// View is a named, ordered list of datasets. Views are never changed after
// construction. Updating a view replaces it with a new one that has a new
// UUID.
type View struct {
	UUID     string        `json:"uuid"`
	Name     string        `json:"name"`
	Datasets []ViewDataset `json:"datasets"`
}

// NewView returns a View with a fresh UUID.
func NewView(name string, datasets ...ViewDataset) *View {
	return &View{
		UUID:     uuid.New().String(),
		Name:     name,
		Datasets: append([]ViewDataset{}, datasets...),
	}
}

// Copy returns a deep copy.
func (v *View) Copy() *View {
	return &View{
		UUID:     v.UUID,
		Name:     v.Name,
		Datasets: append([]ViewDataset{}, v.Datasets...),
	}
}

// Store is the interface used to persist Views.
type Store interface {
	// GetViews returns all views in insertion order.
	GetViews(ctx context.Context) ([]*View, error)

	// FindView returns the view with the given name, or nil.
	FindView(ctx context.Context, name string) (*View, error)

	// GetView returns the view with the given UUID, or ErrViewNotFound.
	GetView(ctx context.Context, id string) (*View, error)

	// AddView stores v. Returns ErrDuplicateViewName if the name is taken.
	AddView(ctx context.Context, v *View) error

	// DeleteView removes the view with the given UUID. Deleting a missing
	// view is not an error.
	DeleteView(ctx context.Context, id string) error

	// ReplaceView removes the view oldID and adds v in its place. v must
	// carry a new UUID, as from NewView.
	ReplaceView(ctx context.Context, oldID string, v *View) error
}
