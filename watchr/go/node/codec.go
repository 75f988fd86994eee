package node

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/types"
)

// CurrentVersion records keep their dates as an ordered "nodes2" list.
// Earlier versions keep them in an unordered "nodes" map.
const CurrentVersion = 2

type recordJSON struct {
	Units    string              `json:"units"`
	Tuples   []*MeasurementTuple `json:"tuples"`
	Metadata map[string]string   `json:"metadata,omitempty"`
}

type datedRecordJSON struct {
	Date   string      `json:"date"`
	Record *recordJSON `json:"record"`
}

// levelJSON is the on-disk form of a LevelNode. Version 1 files only have
// Nodes. Some version 1 files written during the migration carry both maps.
type levelJSON struct {
	Version  int                    `json:"version"`
	Name     string                 `json:"name"`
	Path     string                 `json:"path"`
	Category types.Category         `json:"category"`
	Nodes    map[string]*recordJSON `json:"nodes,omitempty"`
	Nodes2   []*datedRecordJSON     `json:"nodes2,omitempty"`
}

func toRecordJSON(r *NodeRecord) *recordJSON {
	ret := &recordJSON{
		Units:    r.Units,
		Tuples:   make([]*MeasurementTuple, 0, len(r.Tuples)),
		Metadata: r.Metadata,
	}
	for _, k := range r.TupleTypes() {
		ret.Tuples = append(ret.Tuples, r.Tuples[k])
	}
	return ret
}

func fromRecordJSON(r *recordJSON) *NodeRecord {
	ret := NewNodeRecord(r.Units)
	for _, t := range r.Tuples {
		if t == nil {
			continue
		}
		ret.Tuples[t.Type] = t
	}
	for k, v := range r.Metadata {
		ret.Metadata[k] = v
	}
	return ret
}

// Encode writes l in the current on-disk format.
func (l *LevelNode) Encode(w io.Writer) error {
	out := levelJSON{
		Version:  CurrentVersion,
		Name:     l.Name,
		Path:     l.Path,
		Category: l.Category,
		Nodes2:   make([]*datedRecordJSON, 0, len(l.dates)),
	}
	for _, d := range l.dates {
		out.Nodes2 = append(out.Nodes2, &datedRecordJSON{
			Date:   d,
			Record: toRecordJSON(l.records[d]),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return skerr.Wrap(enc.Encode(out))
}

// Decode reads a LevelNode written by Encode or by the legacy writer.
// Legacy records are migrated into the sorted form; the returned bool is
// true when that happened so the caller can rewrite the file.
func Decode(r io.Reader) (*LevelNode, bool, error) {
	var in levelJSON
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, false, skerr.Wrapf(err, "Failed to decode level record")
	}
	if in.Version > CurrentVersion {
		return nil, false, skerr.Fmt("Level record version %d is newer than supported version %d", in.Version, CurrentVersion)
	}
	ret := New(in.Name, in.Path, in.Category)
	for _, dr := range in.Nodes2 {
		if dr == nil || dr.Record == nil {
			continue
		}
		ret.Put(dr.Date, fromRecordJSON(dr.Record))
	}
	migrated := migrateLegacy(ret, in.Nodes)
	if in.Version < CurrentVersion {
		migrated = true
	}
	return ret, migrated, nil
}

// migrateLegacy copies records from the legacy map into l, in date order.
// Dates already present from the sorted list win.
func migrateLegacy(l *LevelNode, legacy map[string]*recordJSON) bool {
	if len(legacy) == 0 {
		return false
	}
	keys := make([]string, 0, len(legacy))
	for k := range legacy {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if legacy[k] == nil {
			continue
		}
		if _, err := types.ParseDate(k); err != nil {
			sklog.Warningf("Dropping record with unparsable date %q from %q: %s", k, l.Path, err)
			continue
		}
		if l.Get(k) != nil {
			continue
		}
		l.Put(k, fromRecordJSON(legacy[k]))
	}
	return true
}
