package treestore

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
	"github.com/sandialabs/watchr-jenkins-sub000/go/util"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/config"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/node"
)

const sep = string(filepath.Separator)

// relPath converts p into a path relative to the tree root. Absolute paths
// must lie inside the tree. The root itself is "".
func (s *Session) relPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return "", skerr.Wrapf(err, "Path %q is not in the tree", p)
		}
		p = rel
	}
	p = filepath.Clean(filepath.FromSlash(p))
	if p == "." {
		return "", nil
	}
	if p == ".." || strings.HasPrefix(p, ".."+sep) {
		return "", skerr.Fmt("Path %q is outside the tree", p)
	}
	return p, nil
}

// depth returns the number of segments in a relative path.
func depth(p string) int {
	if p == "" {
		return 0
	}
	return strings.Count(p, sep) + 1
}

func (s *Session) dirFor(rel string) string {
	return filepath.Join(s.root, rel)
}

func (s *Session) recordFile(rel string) string {
	return filepath.Join(s.root, rel, config.LevelFilename)
}

// loadNode returns the node at rel from the cache or from disk. Returns nil,
// nil if there is no record at rel.
func (s *Session) loadNode(rel string) (*node.LevelNode, error) {
	if v, ok := s.cache.Get(rel); ok {
		return v.(*node.LevelNode), nil
	}
	var ret *node.LevelNode
	var migrated bool
	filename := s.recordFile(rel)
	err := util.WithReadFile(filename, func(r io.Reader) error {
		var err error
		ret, migrated, err = node.Decode(r)
		return err
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to load %s", filename)
	}
	// The path on disk is authoritative.
	ret.Path = rel
	if migrated {
		sklog.Infof("Migrating level record %s to version %d", filename, node.CurrentVersion)
		if err := s.saveNode(ret); err != nil {
			return nil, skerr.Wrap(err)
		}
		return ret, nil
	}
	s.cache.Add(rel, ret)
	return ret, nil
}

// saveNode writes n to disk and caches it.
func (s *Session) saveNode(n *node.LevelNode) error {
	dir := s.dirFor(n.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return skerr.Wrapf(err, "Failed to create directory for %q", n.Path)
	}
	if err := util.WithWriteFile(s.recordFile(n.Path), n.Encode); err != nil {
		return skerr.Wrapf(err, "Failed to write level record for %q", n.Path)
	}
	s.cache.Add(n.Path, n)
	s.nodesWritten.Inc(1)
	return nil
}

// childDirs returns the names of the directories below rel, sorted.
func (s *Session) childDirs(rel string) ([]string, error) {
	entries, err := os.ReadDir(s.dirFor(rel))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to list %q", rel)
	}
	ret := []string{}
	for _, e := range entries {
		if e.IsDir() {
			ret = append(ret, e.Name())
		}
	}
	return ret, nil
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + sep + name
}

// GetNodeAt returns the node at path, or nil if there is none.
func (s *Session) GetNodeAt(ctx context.Context, path string) (*node.LevelNode, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	rel, err := s.relPath(path)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return s.loadNode(rel)
}

// GetParentAt returns the node one level above path, or nil if path is the
// root or the parent has no record.
func (s *Session) GetParentAt(ctx context.Context, path string) (*node.LevelNode, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	rel, err := s.relPath(path)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	if rel == "" {
		return nil, nil
	}
	parent := filepath.Dir(rel)
	if parent == "." {
		parent = ""
	}
	return s.loadNode(parent)
}

// GetChildrenAt returns the nodes directly below path, sorted by name.
//
// If preferDescendants is true and measurable is not empty, a child with no
// data for measurable that has children of its own is replaced by its own
// children, recursively, so that the nearest descendants with data are
// returned instead.
func (s *Session) GetChildrenAt(ctx context.Context, path string, preferDescendants bool, measurable string) ([]*node.LevelNode, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	rel, err := s.relPath(path)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return s.childrenAt(rel, preferDescendants && measurable != "", measurable)
}

func (s *Session) childrenAt(rel string, skipEmpty bool, measurable string) ([]*node.LevelNode, error) {
	names, err := s.childDirs(rel)
	if err != nil {
		return nil, err
	}
	ret := []*node.LevelNode{}
	for _, name := range names {
		childRel := joinRel(rel, name)
		child, err := s.loadNode(childRel)
		if err != nil {
			sklog.Errorf("Skipping child %q: %s", childRel, err)
			continue
		}
		if skipEmpty && (child == nil || child.IsEmptyDataSet(measurable)) {
			grandchildren, err := s.childDirs(childRel)
			if err != nil {
				sklog.Errorf("Skipping child %q: %s", childRel, err)
				continue
			}
			if len(grandchildren) > 0 {
				descendants, err := s.childrenAt(childRel, skipEmpty, measurable)
				if err != nil {
					sklog.Errorf("Skipping descendants of %q: %s", childRel, err)
					continue
				}
				ret = append(ret, descendants...)
				continue
			}
		}
		if child != nil {
			ret = append(ret, child)
		}
	}
	return ret, nil
}

// SearchForChildren returns the nodes below startPath whose path or name
// matches the regular expression searchTerm. A searchTerm that does not
// compile is matched literally. Only direct children are searched unless
// searchAllDescendants is true. Nodes with no data are left out unless
// returnEmptyResults is true.
func (s *Session) SearchForChildren(ctx context.Context, startPath, searchTerm string, searchAllDescendants, returnEmptyResults bool) ([]*node.LevelNode, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	rel, err := s.relPath(startPath)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	re, err := regexp.Compile(searchTerm)
	if err != nil {
		sklog.Debugf("Search term %q is not a valid regexp, matching literally: %s", searchTerm, err)
		re = regexp.MustCompile(regexp.QuoteMeta(searchTerm))
	}
	ret := []*node.LevelNode{}
	err = s.walk(rel, searchAllDescendants, func(n *node.LevelNode) {
		if !re.MatchString(n.Path) && !re.MatchString(n.Name) {
			return
		}
		if !returnEmptyResults && n.IsEmpty() {
			return
		}
		ret = append(ret, n)
	})
	return ret, err
}

// walk calls fn for every node below rel in name order, parents before
// children. Only direct children are visited unless recursive is true.
// Directories without a record are descended into but not reported.
func (s *Session) walk(rel string, recursive bool, fn func(*node.LevelNode)) error {
	names, err := s.childDirs(rel)
	if err != nil {
		return err
	}
	for _, name := range names {
		childRel := joinRel(rel, name)
		child, err := s.loadNode(childRel)
		if err != nil {
			sklog.Errorf("Skipping %q: %s", childRel, err)
			continue
		}
		if child != nil {
			fn(child)
		}
		if recursive {
			if err := s.walk(childRel, true, fn); err != nil {
				sklog.Errorf("Skipping descendants of %q: %s", childRel, err)
			}
		}
	}
	return nil
}

// GatherAll returns every node in the tree, including the root if it has a
// record, sorted by path.
func (s *Session) GatherAll(ctx context.Context) ([]*node.LevelNode, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	ret := []*node.LevelNode{}
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			sklog.Errorf("Skipping %s: %s", p, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Name() != config.LevelFilename {
			return nil
		}
		rel, err := filepath.Rel(s.root, filepath.Dir(p))
		if err != nil {
			return skerr.Wrap(err)
		}
		if rel == "." {
			rel = ""
		}
		n, err := s.loadNode(rel)
		if err != nil {
			sklog.Errorf("Skipping %s: %s", p, err)
			return nil
		}
		if n != nil {
			ret = append(ret, n)
		}
		return nil
	})
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to walk %s", s.root)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Path < ret[j].Path
	})
	return ret, nil
}

// GetAncestors returns the nodes that have records above path, from the
// root down to the immediate parent.
func (s *Session) GetAncestors(ctx context.Context, path string) ([]*node.LevelNode, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	rel, err := s.relPath(path)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	ret := []*node.LevelNode{}
	if rel == "" {
		return ret, nil
	}
	segments := strings.Split(rel, sep)
	for i := 0; i < len(segments); i++ {
		n, err := s.loadNode(strings.Join(segments[:i], sep))
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		if n != nil {
			ret = append(ret, n)
		}
	}
	return ret, nil
}

// DisplayName returns the name to show for nodePath when listed below
// basePath. A node several levels down, as returned by GetChildrenAt with
// preferDescendants, is shown with every segment between the two.
func DisplayName(basePath, nodePath string) string {
	base := filepath.Clean(filepath.FromSlash(basePath))
	if base == "." {
		base = ""
	}
	p := filepath.Clean(filepath.FromSlash(nodePath))
	segments := strings.Split(p, sep)
	d := depth(base)
	if d >= len(segments) || (base != "" && !strings.HasPrefix(p, base+sep)) {
		return segments[len(segments)-1]
	}
	return strings.Join(segments[d:], sep)
}
