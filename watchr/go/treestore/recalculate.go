package treestore

import (
	"context"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/node"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/types"
)

// Recalculate rewrites the rolling average and standard deviation of nodes.
//
// If the config asks to recalculate all, every node in the tree is
// recalculated over the range of dates found in the tree. Otherwise only the
// nodes written during this session are, over the range of report dates
// added during this session. In the latter case nothing happens if no
// report was added.
//
// Returns the number of nodes recalculated.
func (s *Session) Recalculate(ctx context.Context) (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	var nodes []*node.LevelNode
	var bounds types.DateBounds
	if s.cfg.RecalculateAll {
		var err error
		nodes, err = s.GatherAll(ctx)
		if err != nil {
			return 0, skerr.Wrap(err)
		}
		for _, n := range nodes {
			if oldest, newest, ok := n.DateRange(); ok {
				bounds.Extend(oldest)
				bounds.Extend(newest)
			}
		}
	} else {
		bounds = s.bounds
		paths := make([]string, 0, len(s.altered))
		for p := range s.altered {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			n, err := s.loadNode(p)
			if err != nil {
				sklog.Errorf("Not recalculating %q: %s", p, err)
				continue
			}
			if n != nil {
				nodes = append(nodes, n)
			}
		}
	}
	if !bounds.IsSet() {
		s.recalculationSkipped.Inc(1)
		sklog.Warningf("Skipping recalculation of %s: no dates to recalculate over", s.root)
		return 0, nil
	}

	var errs *multierror.Error
	count := 0
	for _, n := range nodes {
		var excluded []string
		if !s.cfg.UseHiddenValues {
			excluded = s.filteredDates(ctx, n.Path)
		}
		updated := n.Recalculate(node.RecalculateOptions{
			RollingRange: s.cfg.RollingRange,
			MinDate:      bounds.Min,
			MaxDate:      bounds.Max,
			Excluded:     excluded,
		})
		if updated == 0 {
			continue
		}
		if err := s.saveNode(n); err != nil {
			sklog.Errorf("Failed to save recalculated node %q: %s", n.Path, err)
			errs = multierror.Append(errs, err)
			continue
		}
		count++
	}
	s.nodesRecalculated.Inc(int64(count))
	sklog.Infof("Recalculated %d of %d nodes between %s and %s", count, len(nodes), bounds.Min, bounds.Max)
	return count, errs.ErrorOrNil()
}
