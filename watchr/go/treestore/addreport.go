package treestore

import (
	"context"

	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/config"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/node"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/report"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/types"
)

// AddReport writes r into the tree.
//
// The report itself is stored at the path given by its name, or at the tree
// root under the root alias if it has no name. Each child element is stored
// one level below its parent. Elements that cannot be placed are logged and
// skipped along with their children.
func (s *Session) AddReport(ctx context.Context, r *report.Report) error {
	if s.closed {
		return ErrSessionClosed
	}
	if _, err := types.ParseDate(r.Date); err != nil {
		return skerr.Wrapf(err, "Report %s has an invalid date", r.Filename)
	}

	path, name := "", s.cfg.RootAlias
	if r.Name != "" {
		if err := s.validateName(r.Name); err != nil {
			s.malformedElementsFound.Inc(1)
			return skerr.Wrapf(err, "Report %s cannot be added", r.Filename)
		}
		path, name = r.Name, r.Name
	}

	s.bounds.Extend(r.Date)
	if err := s.putElement(path, name, &r.Element, r.Date); err != nil {
		return skerr.Wrapf(err, "Failed to add report %s", r.Filename)
	}
	var errs int
	for _, child := range r.Children {
		errs += s.addElement(path, child, r.Date, r.Filename)
	}
	s.reportsAdded.Inc(1)
	if errs > 0 {
		sklog.Warningf("Added report %s with %d elements that could not be written", r.Filename, errs)
	}
	return nil
}

func (s *Session) validateName(name string) error {
	if err := report.ValidateName(name); err != nil {
		return err
	}
	if name == config.LevelFilename {
		return skerr.Wrapf(report.ErrMalformedElement, "element name %q is reserved", name)
	}
	return nil
}

// addElement stores e below parentPath and then its children below it.
// Returns the number of elements that failed to write.
func (s *Session) addElement(parentPath string, e *report.Element, parentDate, filename string) int {
	if e == nil {
		return 0
	}
	if err := s.validateName(e.Name); err != nil {
		s.malformedElementsFound.Inc(1)
		sklog.Warningf("Skipping element below %q in %s: %s", parentPath, filename, err)
		return 0
	}
	date := e.Date
	if date == "" {
		date = parentDate
	} else if _, err := types.ParseDate(date); err != nil {
		s.malformedElementsFound.Inc(1)
		sklog.Warningf("Skipping element %q below %q in %s: %s", e.Name, parentPath, filename, err)
		return 0
	} else {
		s.bounds.Extend(date)
	}

	path := joinRel(parentPath, e.Name)
	if err := s.putElement(path, e.Name, e, date); err != nil {
		sklog.Errorf("Skipping element %q in %s: %s", path, filename, err)
		return 1
	}
	failed := 0
	for _, child := range e.Children {
		failed += s.addElement(path, child, date, filename)
	}
	return failed
}

// putElement stores the record built from e at the node at path.
func (s *Session) putElement(path, name string, e *report.Element, date string) error {
	n, err := s.loadNode(path)
	if err != nil {
		return skerr.Wrap(err)
	}
	if n == nil {
		n = node.New(name, path, e.Category)
	}
	n.Put(date, s.newRecord(e))
	if err := s.saveNode(n); err != nil {
		return skerr.Wrap(err)
	}
	s.altered[path] = true
	return nil
}

func (s *Session) newRecord(e *report.Element) *node.NodeRecord {
	units := e.Units
	if units == "" {
		units = s.cfg.DefaultUnit
	}
	ret := node.NewNodeRecord(units)
	for k, v := range e.Attributes {
		ret.SetValue(k, v)
	}
	for k, v := range e.Metadata {
		ret.Metadata[k] = v
	}
	return ret
}
