// Package ledger remembers the content hash of every report file ingested,
// per build, so that the same file is never added to the tree twice.
package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	ldbutil "github.com/syndtr/goleveldb/leveldb/util"
)

const keyPrefix = "build/"

// Entry describes the first file seen with a given hash.
type Entry struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
}

// Ledger is an in-memory copy of the build hash database. Changes are kept
// in memory until Flush.
type Ledger struct {
	db *leveldb.DB

	builds map[int]map[string]Entry
	// hashes maps every known hash to the build that recorded it.
	hashes map[string]int

	pending *leveldb.Batch
}

func key(build int, hash string) []byte {
	return []byte(fmt.Sprintf("%s%d/%s", keyPrefix, build, hash))
}

func parseKey(k []byte) (int, string, error) {
	parts := strings.SplitN(strings.TrimPrefix(string(k), keyPrefix), "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return 0, "", skerr.Fmt("Malformed ledger key %q", string(k))
	}
	build, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", skerr.Wrapf(err, "Malformed build number in ledger key %q", string(k))
	}
	return build, parts[1], nil
}

// Open opens or creates the database in dir and loads it into memory.
func Open(dir string) (*Ledger, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil && errors.IsCorrupted(err) {
		sklog.Warningf("Build hash database at %s is corrupt, recovering: %s", dir, err)
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to open build hash database at %s", dir)
	}
	l := &Ledger{
		db:      db,
		builds:  map[int]map[string]Entry{},
		hashes:  map[string]int{},
		pending: new(leveldb.Batch),
	}
	iter := db.NewIterator(ldbutil.BytesPrefix([]byte(keyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		build, hash, err := parseKey(iter.Key())
		if err != nil {
			sklog.Warningf("Skipping ledger entry: %s", err)
			continue
		}
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			sklog.Warningf("Skipping ledger entry for build %d hash %s: %s", build, hash, err)
			continue
		}
		l.put(build, hash, e)
	}
	if err := iter.Error(); err != nil {
		_ = db.Close()
		return nil, skerr.Wrapf(err, "Failed to read build hash database at %s", dir)
	}
	return l, nil
}

func (l *Ledger) put(build int, hash string, e Entry) {
	m, ok := l.builds[build]
	if !ok {
		m = map[string]Entry{}
		l.builds[build] = m
	}
	m[hash] = e
	if b, ok := l.hashes[hash]; !ok || build < b {
		l.hashes[hash] = build
	}
}

// Lookup returns the build and entry that first recorded hash.
func (l *Ledger) Lookup(hash string) (int, Entry, bool) {
	build, ok := l.hashes[hash]
	if !ok {
		return 0, Entry{}, false
	}
	return build, l.builds[build][hash], true
}

// Record adds hash to build. Recording a hash that is already known under
// the same build overwrites its entry.
func (l *Ledger) Record(build int, hash string, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return skerr.Wrap(err)
	}
	l.put(build, hash, e)
	l.pending.Put(key(build, hash), b)
	return nil
}

// DeleteBuild forgets every hash recorded for build. Returns the number of
// hashes removed.
func (l *Ledger) DeleteBuild(build int) int {
	m, ok := l.builds[build]
	if !ok {
		return 0
	}
	delete(l.builds, build)
	for hash := range m {
		l.pending.Delete(key(build, hash))
		delete(l.hashes, hash)
		// Another build may also know the hash.
		for other, om := range l.builds {
			if _, ok := om[hash]; ok {
				if b, ok := l.hashes[hash]; !ok || other < b {
					l.hashes[hash] = other
				}
			}
		}
	}
	return len(m)
}

// Builds returns the build numbers with at least one hash, ascending.
func (l *Ledger) Builds() []int {
	ret := make([]int, 0, len(l.builds))
	for b := range l.builds {
		ret = append(ret, b)
	}
	sort.Ints(ret)
	return ret
}

// Hashes returns the hashes recorded for build.
func (l *Ledger) Hashes(build int) map[string]Entry {
	ret := map[string]Entry{}
	for k, v := range l.builds[build] {
		ret[k] = v
	}
	return ret
}

// Flush writes all pending changes in a single batch.
func (l *Ledger) Flush() error {
	if l.pending.Len() == 0 {
		return nil
	}
	if err := l.db.Write(l.pending, nil); err != nil {
		return skerr.Wrapf(err, "Failed to write build hashes")
	}
	l.pending.Reset()
	return nil
}

// Close flushes and closes the database.
func (l *Ledger) Close() error {
	flushErr := l.Flush()
	if err := l.db.Close(); err != nil {
		return skerr.Wrapf(err, "Failed to close build hash database")
	}
	return flushErr
}
