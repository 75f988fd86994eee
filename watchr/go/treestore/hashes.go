package treestore

import (
	"context"

	"github.com/sandialabs/watchr-jenkins-sub000/go/now"
	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/treestore/ledger"
)

// Duplicate describes a file whose content was already ingested.
type Duplicate struct {
	Build int
	Hash  string
	ledger.Entry
}

// LookupHash returns the original ingestion of hash under any build, or nil.
func (s *Session) LookupHash(ctx context.Context, hash string) (*Duplicate, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	build, e, ok := s.ledger.Lookup(hash)
	if !ok {
		return nil, nil
	}
	return &Duplicate{Build: build, Hash: hash, Entry: e}, nil
}

// RecordHash records hash under build as coming from filename.
func (s *Session) RecordHash(ctx context.Context, build int, hash, filename string) error {
	if s.closed {
		return ErrSessionClosed
	}
	return skerr.Wrap(s.ledger.Record(build, hash, ledger.Entry{
		Filename:  filename,
		Timestamp: now.Now(ctx).UTC(),
	}))
}

// CheckAndRecordHash returns the original ingestion if hash is already known
// under any build. Otherwise it records hash under build and returns nil.
func (s *Session) CheckAndRecordHash(ctx context.Context, build int, hash, filename string) (*Duplicate, error) {
	dup, err := s.LookupHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		s.duplicateFilesSkipped.Inc(1)
		sklog.Infof("Skipping %s in build %d: same content as %s from build %d at %s", filename, build, dup.Filename, dup.Build, dup.Timestamp)
		return dup, nil
	}
	return nil, s.RecordHash(ctx, build, hash, filename)
}

// DeleteBuild forgets the hashes recorded for build, so that its files can
// be ingested again. Returns the number of hashes forgotten.
func (s *Session) DeleteBuild(ctx context.Context, build int) (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	n := s.ledger.DeleteBuild(build)
	sklog.Infof("Forgot %d file hashes for build %d", n, build)
	return n, nil
}

// Builds returns the build numbers with recorded hashes.
func (s *Session) Builds(ctx context.Context) ([]int, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.ledger.Builds(), nil
}
