package treestore

import (
	"context"

	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/node"
)

// GetFailures returns the nodes at and below startPath whose newest visible
// point of measurable fails against the configured thresholds. Filtered
// dates are never considered visible.
func (s *Session) GetFailures(ctx context.Context, startPath, measurable string) ([]*node.LevelNode, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	rel, err := s.relPath(startPath)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	ret := []*node.LevelNode{}
	check := func(n *node.LevelNode) {
		if n.DataIsFailure(measurable, s.cfg.AvgFailIfGreater, s.cfg.StdDevFailIfGreater, s.filteredDates(ctx, n.Path)) {
			ret = append(ret, n)
		}
	}
	start, err := s.loadNode(rel)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	if start != nil {
		check(start)
	}
	if err := s.walk(rel, true, check); err != nil {
		return nil, skerr.Wrap(err)
	}
	return ret, nil
}

// GetDatesInRange returns the trailing points of measurable at path using
// the configured time scale and rounding, hiding filtered dates. Returns an
// empty slice if there is no node at path.
func (s *Session) GetDatesInRange(ctx context.Context, path, measurable string) ([]node.DateEntry, error) {
	n, err := s.GetNodeAt(ctx, path)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return []node.DateEntry{}, nil
	}
	return n.GetDatesInRange(measurable, node.RangeQuery{
		TimeScale:    s.cfg.TimeScale,
		EnableAvg:    true,
		EnableStdDev: true,
		RoundTo:      s.cfg.RoundTo,
		Filtered:     s.filteredDates(ctx, n.Path),
	}), nil
}
