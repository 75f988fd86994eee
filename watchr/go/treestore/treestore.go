// Package treestore owns the on-disk hierarchy of LevelNodes.
//
// All access goes through a Session. A Store hands out at most one Session
// at a time, and everything a Session changes is recalculated and persisted
// when it is closed.
package treestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sandialabs/watchr-jenkins-sub000/go/metrics2"
	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/config"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/filterstore"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/treestore/ledger"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/types"
)

var (
	// ErrSessionOpen is returned by Store.Open while another Session from
	// the same Store is still open.
	ErrSessionOpen = errors.New("tree store already has an open session")

	// ErrSessionClosed is returned by Session methods called after Close.
	ErrSessionClosed = errors.New("tree store session is closed")
)

// Store is a handle on one tree of LevelNodes on disk.
type Store struct {
	cfg     *config.InstanceConfig
	filters filterstore.Store

	mutex   sync.Mutex
	session *Session
}

// New returns a Store for the tree described by cfg. filters may be nil, in
// which case no dates are ever excluded.
func New(cfg *config.InstanceConfig, filters filterstore.Store) *Store {
	return &Store{
		cfg:     cfg,
		filters: filters,
	}
}

// Session is one open, mutate, close cycle against a Store. A Session is not
// safe for concurrent use.
type Session struct {
	store *Store
	cfg   *config.InstanceConfig
	root  string

	// cache holds *node.LevelNode keyed by relative path. Every change to a
	// node is written to disk immediately, so evicting is always safe.
	cache *lru.Cache

	// altered holds the paths written during this session.
	altered map[string]bool

	// bounds are the smallest and largest report dates added this session.
	bounds types.DateBounds

	ledger *ledger.Ledger
	closed bool

	reportsAdded           metrics2.Counter
	nodesWritten           metrics2.Counter
	duplicateFilesSkipped  metrics2.Counter
	nodesRecalculated      metrics2.Counter
	recalculationSkipped   metrics2.Counter
	malformedElementsFound metrics2.Counter
}

// Open starts a Session. It creates the tree root if needed and loads the
// build hash ledger. Returns ErrSessionOpen if a Session is already open.
func (s *Store) Open(ctx context.Context) (*Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.session != nil {
		return nil, ErrSessionOpen
	}
	root, err := filepath.Abs(s.cfg.NodesPath())
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to resolve tree root")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, skerr.Wrapf(err, "Failed to create tree root %s", root)
	}
	cache, err := lru.New(s.cfg.NodeCacheSize)
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to create node cache of size: %d", s.cfg.NodeCacheSize)
	}
	l, err := ledger.Open(s.cfg.BuildHashesPath())
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	s.session = &Session{
		store:                  s,
		cfg:                    s.cfg,
		root:                   root,
		cache:                  cache,
		altered:                map[string]bool{},
		ledger:                 l,
		reportsAdded:           metrics2.GetCounter("watchr_reports_added", nil),
		nodesWritten:           metrics2.GetCounter("watchr_nodes_written", nil),
		duplicateFilesSkipped:  metrics2.GetCounter("watchr_duplicate_files_skipped", nil),
		nodesRecalculated:      metrics2.GetCounter("watchr_nodes_recalculated", nil),
		recalculationSkipped:   metrics2.GetCounter("watchr_recalculation_skipped", nil),
		malformedElementsFound: metrics2.GetCounter("watchr_malformed_elements", nil),
	}
	sklog.Infof("Opened tree store at %s", root)
	return s.session, nil
}

func (s *Store) release(session *Session) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.session == session {
		s.session = nil
	}
}

// Close recalculates the nodes changed during the session, persists the
// ledger and releases the Store for the next Session. Calling Close more
// than once is a no-op.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	var errs *multierror.Error
	if _, err := s.Recalculate(ctx); err != nil {
		errs = multierror.Append(errs, skerr.Wrapf(err, "Failed to recalculate at close"))
	}
	if err := s.Release(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// Release ends the session like Close but without recalculating. Use it for
// sessions that only read, or that already called Recalculate. Calling
// Release on a closed Session is a no-op.
func (s *Session) Release(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.bounds.Reset()
	s.altered = map[string]bool{}
	s.cache.Purge()
	var err error
	if closeErr := s.ledger.Close(); closeErr != nil {
		err = skerr.Wrapf(closeErr, "Failed to close build hash ledger")
	}
	s.store.release(s)
	sklog.Infof("Closed tree store at %s", s.root)
	return err
}

// Closed returns true once Close has been called.
func (s *Session) Closed() bool {
	return s.closed
}

// Bounds returns the range of report dates added during this session.
func (s *Session) Bounds() types.DateBounds {
	return s.bounds
}

// filteredDates returns the dates hidden for the node at path, logging and
// ignoring filter store errors. Node paths are already relative to the tree
// root, so only an entry stored for exactly this path applies.
func (s *Session) filteredDates(ctx context.Context, path string) []string {
	if s.store.filters == nil {
		return nil
	}
	f, err := s.store.filters.GetFilterDataByPath(ctx, path, true)
	if err != nil {
		sklog.Errorf("Failed to read filtered dates for %q: %s", path, err)
		return nil
	}
	if f == nil {
		return nil
	}
	return f.FilteredDates
}
