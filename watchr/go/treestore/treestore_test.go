package treestore

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/sandialabs/watchr-jenkins-sub000/go/metrics2"
	"github.com/sandialabs/watchr-jenkins-sub000/go/now"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/config"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/filterstore"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/node"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/report"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/types"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/watchrtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dates = []string{
	"2018-12-15T10:00:00",
	"2018-12-16T10:00:00",
	"2018-12-17T10:00:00",
	"2018-12-18T10:00:00",
	"2018-12-19T10:00:00",
}

var solverPath = filepath.Join("nightly", "solver")

func openSession(t *testing.T, s *Store) *Session {
	session, err := s.Open(context.Background())
	require.NoError(t, err)
	return session
}

// nightly returns a report with one timing measured as cpu.
func nightly(date string, cpu float64) *report.Report {
	return watchrtest.Report("nightly", date,
		watchrtest.Timing("solver", map[string]float64{"cpu": cpu},
			watchrtest.Timing("assemble", map[string]float64{"cpu": cpu / 2}),
		),
		watchrtest.Metric("memory", "MB", 512),
	)
}

// addSeries adds one report per date in a single session and closes it.
func addSeries(t *testing.T, s *Store, dates []string, values []float64) {
	ctx := context.Background()
	session := openSession(t, s)
	for i, d := range dates {
		require.NoError(t, session.AddReport(ctx, nightly(d, values[i])))
	}
	require.NoError(t, session.Close(ctx))
}

func tupleAt(t *testing.T, session *Session, path, date, typ string) *node.MeasurementTuple {
	n, err := session.GetNodeAt(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, n)
	r := n.Get(date)
	require.NotNil(t, r)
	tuple := r.Tuple(typ)
	require.NotNil(t, tuple)
	return tuple
}

func TestStore_Open_SecondOpen_ReturnsErrSessionOpen(t *testing.T) {
	ctx := context.Background()
	s := New(watchrtest.Config(t), nil)
	session := openSession(t, s)

	_, err := s.Open(ctx)
	assert.Equal(t, ErrSessionOpen, err)

	require.NoError(t, session.Close(ctx))
	require.NoError(t, session.Close(ctx))
	assert.True(t, session.Closed())

	_, err = session.GetNodeAt(ctx, "")
	assert.Equal(t, ErrSessionClosed, err)
	assert.Equal(t, ErrSessionClosed, session.AddReport(ctx, nightly(dates[0], 1)))

	again := openSession(t, s)
	require.NoError(t, again.Close(ctx))
}

func TestSession_Open_CreatesTreeRoot(t *testing.T) {
	cfg := watchrtest.Config(t)
	session := openSession(t, New(cfg, nil))
	defer func() { require.NoError(t, session.Close(context.Background())) }()

	fi, err := os.Stat(cfg.NodesPath())
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestSession_AddReport_BuildsHierarchy(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	session := openSession(t, New(cfg, nil))
	defer func() { require.NoError(t, session.Close(ctx)) }()

	require.NoError(t, session.AddReport(ctx, nightly(dates[0], 10)))

	top, err := session.GetNodeAt(ctx, "nightly")
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, "nightly", top.Name)
	assert.Equal(t, types.PerformanceReport, top.Category)

	assemble, err := session.GetNodeAt(ctx, filepath.Join("nightly", "solver", "assemble"))
	require.NoError(t, err)
	require.NotNil(t, assemble)
	assert.Equal(t, "assemble", assemble.Name)
	assert.Equal(t, types.Timing, assemble.Category)
	r := assemble.Get(dates[0])
	require.NotNil(t, r)
	assert.Equal(t, config.DefaultUnit, r.Units)
	assert.Equal(t, 5.0, r.Tuple("cpu").Value)

	memory, err := session.GetNodeAt(ctx, filepath.Join("nightly", "memory"))
	require.NoError(t, err)
	require.NotNil(t, memory)
	assert.Equal(t, "MB", memory.Get(dates[0]).Units)

	_, err = os.Stat(filepath.Join(cfg.NodesPath(), "nightly", "solver", "assemble", config.LevelFilename))
	assert.NoError(t, err)

	parent, err := session.GetParentAt(ctx, assemble.Path)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, solverPath, parent.Path)

	children, err := session.GetChildrenAt(ctx, "nightly", false, "")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "memory", children[0].Name)
	assert.Equal(t, "solver", children[1].Name)

	missing, err := session.GetNodeAt(ctx, "no/such/path")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = session.GetNodeAt(ctx, "../outside")
	assert.Error(t, err)
}

func TestSession_AddReport_BlankName_StoredAtRootAlias(t *testing.T) {
	ctx := context.Background()
	session := openSession(t, New(watchrtest.Config(t), nil))
	defer func() { require.NoError(t, session.Close(ctx)) }()

	r := watchrtest.Report("", dates[0], watchrtest.Metric("memory", "MB", 1))
	require.NoError(t, session.AddReport(ctx, r))

	root, err := session.GetNodeAt(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, config.DefaultRootAlias, root.Name)

	memory, err := session.GetNodeAt(ctx, "memory")
	require.NoError(t, err)
	require.NotNil(t, memory)

	parent, err := session.GetParentAt(ctx, "memory")
	require.NoError(t, err)
	assert.Equal(t, root, parent)

	parent, err = session.GetParentAt(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, parent)
}

func TestSession_AddReport_MalformedElements_Skipped(t *testing.T) {
	ctx := context.Background()
	session := openSession(t, New(watchrtest.Config(t), nil))
	defer func() { require.NoError(t, session.Close(ctx)) }()

	r := watchrtest.Report("nightly", dates[0],
		watchrtest.Timing("", map[string]float64{"cpu": 1}),
		watchrtest.Timing("a/b", map[string]float64{"cpu": 1}),
		watchrtest.Timing("..", map[string]float64{"cpu": 1}),
		&report.Element{Name: "bad-date", Date: "someday"},
		watchrtest.Timing("good", map[string]float64{"cpu": 1}),
	)
	require.NoError(t, session.AddReport(ctx, r))

	children, err := session.GetChildrenAt(ctx, "nightly", false, "")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "good", children[0].Name)

	assert.Error(t, session.AddReport(ctx, watchrtest.Report("x/y", dates[0])))
	assert.Error(t, session.AddReport(ctx, watchrtest.Report("nightly", "not a date")))
}

func TestSession_Close_RecalculatesRollingWindow(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	cfg.RollingRange = 3
	s := New(cfg, nil)
	addSeries(t, s, dates, []float64{1, 2, 3, 4, 10})

	session := openSession(t, s)
	defer func() { require.NoError(t, session.Close(ctx)) }()

	first := tupleAt(t, session, solverPath, dates[0], "cpu")
	assert.Equal(t, 1.0, first.Average)
	assert.Equal(t, 0.0, first.StdDev)

	second := tupleAt(t, session, solverPath, dates[1], "cpu")
	assert.InDelta(t, 1.5, second.Average, 1e-9)
	assert.InDelta(t, 0.5, second.StdDev, 1e-9)

	last := tupleAt(t, session, solverPath, dates[4], "cpu")
	assert.InDelta(t, 17.0/3, last.Average, 1e-9)
	mean := 17.0 / 3
	std := math.Sqrt((math.Pow(3-mean, 2) + math.Pow(4-mean, 2) + math.Pow(10-mean, 2)) / 3)
	assert.InDelta(t, std, last.StdDev, 1e-9)

	// Children are recalculated too.
	assemble := tupleAt(t, session, filepath.Join(solverPath, "assemble"), dates[4], "cpu")
	assert.InDelta(t, 17.0/6, assemble.Average, 1e-9)
}

func TestSession_Recalculate_Incremental_OnlyTouchesSessionRange(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	cfg.RollingRange = 2
	s := New(cfg, nil)
	addSeries(t, s, dates[:4], []float64{1, 2, 3, 4})

	// Overwrite an old average to detect whether it is touched again.
	session := openSession(t, s)
	n, err := session.GetNodeAt(ctx, solverPath)
	require.NoError(t, err)
	n.Get(dates[0]).Tuple("cpu").Average = 99
	require.NoError(t, session.saveNode(n))
	require.NoError(t, session.AddReport(ctx, nightly(dates[4], 10)))
	require.NoError(t, session.Close(ctx))

	session = openSession(t, s)
	defer func() { require.NoError(t, session.Close(ctx)) }()
	assert.Equal(t, 99.0, tupleAt(t, session, solverPath, dates[0], "cpu").Average)
	assert.InDelta(t, 7.0, tupleAt(t, session, solverPath, dates[4], "cpu").Average, 1e-9)
}

func TestSession_Recalculate_NoReports_SkippedWithWarning(t *testing.T) {
	ctx := context.Background()
	s := New(watchrtest.Config(t), nil)
	addSeries(t, s, dates[:2], []float64{1, 2})

	skipped := metrics2.GetCounter("watchr_recalculation_skipped", nil)
	before := skipped.Get()

	session := openSession(t, s)
	count, err := session.Recalculate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, before+1, skipped.Get())
	require.NoError(t, session.Close(ctx))
}

func TestSession_Recalculate_FilteredDatesExcluded(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	cfg.RollingRange = 3
	filters := filterstore.New(cfg.FilterFile)
	_, err := filters.Open(ctx)
	require.NoError(t, err)
	defer func() {
		_, err := filters.Close(ctx)
		require.NoError(t, err)
	}()
	require.NoError(t, filters.SetFilteredDates(ctx, solverPath, []string{dates[3]}))

	s := New(cfg, filters)
	addSeries(t, s, dates, []float64{1, 2, 3, 100, 10})

	session := openSession(t, s)
	defer func() { require.NoError(t, session.Close(ctx)) }()
	// The window at the last date is 10, 3, 2 with 100 hidden.
	assert.InDelta(t, 5.0, tupleAt(t, session, solverPath, dates[4], "cpu").Average, 1e-9)
	// Other paths are not filtered.
	assert.InDelta(t, (50+1.5+5)/3, tupleAt(t, session, filepath.Join(solverPath, "assemble"), dates[4], "cpu").Average, 1e-9)
}

func TestSession_FilteredDates_OnlyExactPathApplies(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	cfg.RollingRange = 3
	filters := filterstore.New(cfg.FilterFile)
	_, err := filters.Open(ctx)
	require.NoError(t, err)
	defer func() {
		_, err := filters.Close(ctx)
		require.NoError(t, err)
	}()
	// A top-level node named like the solver below nightly.
	require.NoError(t, filters.SetFilteredDates(ctx, "solver", []string{dates[3]}))

	s := New(cfg, filters)
	addSeries(t, s, dates, []float64{1, 2, 3, 100, 10})

	session := openSession(t, s)
	defer func() { require.NoError(t, session.Close(ctx)) }()
	assert.InDelta(t, 113.0/3, tupleAt(t, session, solverPath, dates[4], "cpu").Average, 1e-9)

	entries, err := session.GetDatesInRange(ctx, solverPath, "cpu")
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, dates[3], entries[3].Date)

	failures, err := session.GetFailures(ctx, solverPath, "cpu")
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestSession_FilteredDates_RootNode(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	filters := filterstore.New(cfg.FilterFile)
	_, err := filters.Open(ctx)
	require.NoError(t, err)
	defer func() {
		_, err := filters.Close(ctx)
		require.NoError(t, err)
	}()
	require.NoError(t, filters.SetFilteredDates(ctx, "", []string{dates[1]}))

	s := New(cfg, filters)
	session := openSession(t, s)
	for i, d := range dates[:3] {
		r := watchrtest.Report("", d)
		r.Filename = strconv.Itoa(i) + ".json"
		r.Attributes = map[string]float64{"cpu": float64(i + 1)}
		require.NoError(t, session.AddReport(ctx, r))
	}
	require.NoError(t, session.Close(ctx))

	session = openSession(t, s)
	defer func() { require.NoError(t, session.Close(ctx)) }()
	entries, err := session.GetDatesInRange(ctx, "", "cpu")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, dates[0], entries[0].Date)
	assert.Equal(t, dates[2], entries[1].Date)
	// The hidden 2 is left out of the window.
	assert.Equal(t, 2.0, *entries[1].Average)
}

func TestSession_Recalculate_UseHiddenValues_IncludesFilteredDates(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	cfg.RollingRange = 3
	cfg.UseHiddenValues = true
	filters := filterstore.New(cfg.FilterFile)
	_, err := filters.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, filters.SetFilteredDates(ctx, solverPath, []string{dates[3]}))

	s := New(cfg, filters)
	addSeries(t, s, dates, []float64{1, 2, 3, 100, 10})

	session := openSession(t, s)
	defer func() { require.NoError(t, session.Close(ctx)) }()
	assert.InDelta(t, 113.0/3, tupleAt(t, session, solverPath, dates[4], "cpu").Average, 1e-9)
}

func TestSession_Recalculate_All_RunsWithoutNewReports(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	cfg.RollingRange = 5
	s := New(cfg, nil)
	addSeries(t, s, dates, []float64{1, 2, 3, 4, 5})

	cfg.RollingRange = 1
	cfg.RecalculateAll = true
	session := openSession(t, s)
	count, err := session.Recalculate(ctx)
	require.NoError(t, err)
	// solver, assemble and memory. The report node has no measurements.
	assert.Equal(t, 3, count)
	assert.Equal(t, 5.0, tupleAt(t, session, solverPath, dates[4], "cpu").Average)
	assert.Equal(t, 0.0, tupleAt(t, session, solverPath, dates[4], "cpu").StdDev)
	require.NoError(t, session.Close(ctx))
}

func TestSession_Release_DoesNotRecalculate(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	cfg.RollingRange = 5
	s := New(cfg, nil)
	addSeries(t, s, dates, []float64{1, 2, 3, 4, 5})

	skipped := metrics2.GetCounter("watchr_recalculation_skipped", nil)
	before := skipped.Get()
	session := openSession(t, s)
	_, err := session.GetNodeAt(ctx, solverPath)
	require.NoError(t, err)
	require.NoError(t, session.Release(ctx))
	require.NoError(t, session.Release(ctx))
	assert.True(t, session.Closed())
	assert.Equal(t, before, skipped.Get())

	// A full recalculation with a shorter window would change the average.
	cfg.RollingRange = 1
	cfg.RecalculateAll = true
	session = openSession(t, s)
	require.NoError(t, session.Release(ctx))

	session = openSession(t, s)
	defer func() { require.NoError(t, session.Release(ctx)) }()
	assert.Equal(t, 3.0, tupleAt(t, session, solverPath, dates[4], "cpu").Average)
}

func TestSession_Recalculate_Idempotent(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	cfg.RollingRange = 3
	cfg.RecalculateAll = true
	s := New(cfg, nil)
	addSeries(t, s, dates, []float64{3, 1, 4, 1, 5})

	session := openSession(t, s)
	defer func() { require.NoError(t, session.Close(ctx)) }()
	_, err := session.Recalculate(ctx)
	require.NoError(t, err)
	before, err := session.GatherAll(ctx)
	require.NoError(t, err)
	snapshot := make([]string, 0, len(before))
	for _, n := range before {
		for _, d := range n.Dates() {
			for _, typ := range n.Get(d).TupleTypes() {
				tuple := n.Get(d).Tuple(typ)
				snapshot = append(snapshot, n.Path, d, typ, formatFloat(tuple.Average), formatFloat(tuple.StdDev))
			}
		}
	}

	_, err = session.Recalculate(ctx)
	require.NoError(t, err)
	after, err := session.GatherAll(ctx)
	require.NoError(t, err)
	i := 0
	for _, n := range after {
		for _, d := range n.Dates() {
			for _, typ := range n.Get(d).TupleTypes() {
				tuple := n.Get(d).Tuple(typ)
				assert.Equal(t, snapshot[i:i+5], []string{n.Path, d, typ, formatFloat(tuple.Average), formatFloat(tuple.StdDev)})
				i += 5
			}
		}
	}
	assert.Equal(t, len(snapshot), i)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func TestSession_CheckAndRecordHash_DuplicateAcrossBuilds(t *testing.T) {
	ts := time.Date(2018, time.December, 19, 10, 0, 0, 0, time.UTC)
	ctx := context.WithValue(context.Background(), now.ContextKey, ts)
	s := New(watchrtest.Config(t), nil)

	session := openSession(t, s)
	dup, err := session.CheckAndRecordHash(ctx, 1, "abc123", "first.json")
	require.NoError(t, err)
	assert.Nil(t, dup)
	require.NoError(t, session.Close(ctx))

	session = openSession(t, s)
	defer func() { require.NoError(t, session.Close(ctx)) }()
	dup, err = session.CheckAndRecordHash(ctx, 2, "abc123", "second.json")
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.Equal(t, 1, dup.Build)
	assert.Equal(t, "first.json", dup.Filename)
	assert.True(t, ts.Equal(dup.Timestamp))

	builds, err := session.Builds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, builds)

	n, err := session.DeleteBuild(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	dup, err = session.CheckAndRecordHash(ctx, 2, "abc123", "second.json")
	require.NoError(t, err)
	assert.Nil(t, dup)
}

func TestSession_GetChildrenAt_PreferDescendants_SkipsEmptyLevels(t *testing.T) {
	ctx := context.Background()
	session := openSession(t, New(watchrtest.Config(t), nil))
	defer func() { require.NoError(t, session.Close(ctx)) }()

	r := watchrtest.Report("nightly", dates[0],
		watchrtest.Timing("group", nil,
			watchrtest.Timing("leaf", map[string]float64{"cpu": 1}),
			watchrtest.Timing("other", map[string]float64{"cpu": 2}),
		),
		watchrtest.Timing("direct", map[string]float64{"cpu": 3}),
		watchrtest.Timing("emptyleaf", nil),
	)
	require.NoError(t, session.AddReport(ctx, r))

	children, err := session.GetChildrenAt(ctx, "nightly", false, "cpu")
	require.NoError(t, err)
	names := []string{}
	for _, c := range children {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"direct", "emptyleaf", "group"}, names)

	children, err = session.GetChildrenAt(ctx, "nightly", true, "cpu")
	require.NoError(t, err)
	names = []string{}
	for _, c := range children {
		names = append(names, DisplayName("nightly", c.Path))
	}
	assert.Equal(t, []string{"direct", "emptyleaf", filepath.Join("group", "leaf"), filepath.Join("group", "other")}, names)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "leaf", DisplayName("a", filepath.Join("a", "leaf")))
	assert.Equal(t, filepath.Join("g", "leaf"), DisplayName("a", filepath.Join("a", "g", "leaf")))
	assert.Equal(t, filepath.Join("a", "leaf"), DisplayName("", filepath.Join("a", "leaf")))
	// Same name at two depths resolves by depth, not by name.
	assert.Equal(t, filepath.Join("a", "a"), DisplayName("a", filepath.Join("a", "a", "a")))
	// Not below the base path.
	assert.Equal(t, "leaf", DisplayName("b", filepath.Join("a", "leaf")))
}

func TestSession_GetAncestors(t *testing.T) {
	ctx := context.Background()
	session := openSession(t, New(watchrtest.Config(t), nil))
	defer func() { require.NoError(t, session.Close(ctx)) }()
	require.NoError(t, session.AddReport(ctx, nightly(dates[0], 1)))

	ancestors, err := session.GetAncestors(ctx, filepath.Join("nightly", "solver", "assemble"))
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, "nightly", ancestors[0].Path)
	assert.Equal(t, solverPath, ancestors[1].Path)

	ancestors, err = session.GetAncestors(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, ancestors)
}

func TestSession_SearchForChildren(t *testing.T) {
	ctx := context.Background()
	session := openSession(t, New(watchrtest.Config(t), nil))
	defer func() { require.NoError(t, session.Close(ctx)) }()
	r := nightly(dates[0], 1)
	r.Children = append(r.Children,
		watchrtest.Timing("a[1]", map[string]float64{"cpu": 1}),
		watchrtest.Timing("blank", nil),
	)
	require.NoError(t, session.AddReport(ctx, r))

	found, err := session.SearchForChildren(ctx, "nightly", "^sol", false, false)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "solver", found[0].Name)

	// Only direct children unless asked.
	found, err = session.SearchForChildren(ctx, "nightly", "assem", false, false)
	require.NoError(t, err)
	assert.Empty(t, found)
	found, err = session.SearchForChildren(ctx, "nightly", "assem", true, false)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "assemble", found[0].Name)

	// Matching against the full path.
	found, err = session.SearchForChildren(ctx, "", "solver", true, false)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	// Invalid regexps are matched literally.
	found, err = session.SearchForChildren(ctx, "nightly", "a[", false, false)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a[1]", found[0].Name)

	found, err = session.SearchForChildren(ctx, "nightly", "blank", false, false)
	require.NoError(t, err)
	assert.Empty(t, found)
	found, err = session.SearchForChildren(ctx, "nightly", "blank", false, true)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestSession_GetFailures(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	cfg.RollingRange = 5
	filters := filterstore.New(cfg.FilterFile)
	_, err := filters.Open(ctx)
	require.NoError(t, err)
	s := New(cfg, filters)
	// The last value is above the rolling average everywhere cpu is measured.
	addSeries(t, s, dates, []float64{1, 1, 1, 1, 10})

	session := openSession(t, s)
	defer func() { require.NoError(t, session.Close(ctx)) }()
	failures, err := session.GetFailures(ctx, "nightly", "cpu")
	require.NoError(t, err)
	paths := []string{}
	for _, f := range failures {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{solverPath, filepath.Join(solverPath, "assemble")}, paths)

	// Hiding the last date makes the previous point the latest visible one.
	require.NoError(t, filters.SetFilteredDates(ctx, solverPath, []string{dates[4]}))
	failures, err = session.GetFailures(ctx, solverPath, "cpu")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, filepath.Join(solverPath, "assemble"), failures[0].Path)
}

func TestSession_GetDatesInRange(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	cfg.TimeScale = 2
	cfg.RollingRange = 2
	s := New(cfg, nil)
	addSeries(t, s, dates[:3], []float64{1, 2, 4})

	session := openSession(t, s)
	defer func() { require.NoError(t, session.Close(ctx)) }()
	entries, err := session.GetDatesInRange(ctx, solverPath, "cpu")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, dates[1], entries[0].Date)
	assert.Equal(t, dates[2], entries[1].Date)
	assert.Equal(t, 4.0, entries[1].Value)
	assert.Equal(t, 3.0, *entries[1].Average)
	// Reported as average + standard deviation.
	assert.Equal(t, 4.0, *entries[1].StdDev)

	entries, err = session.GetDatesInRange(ctx, "missing", "cpu")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSession_GetNodeAt_LegacyRecord_Migrated(t *testing.T) {
	ctx := context.Background()
	cfg := watchrtest.Config(t)
	dir := filepath.Join(cfg.NodesPath(), "legacy")
	require.NoError(t, os.MkdirAll(dir, 0755))
	legacy := `{
  "version": 1,
  "name": "legacy",
  "path": "legacy",
  "category": "timing",
  "nodes": {
    "2018-12-18 10:00:00": {"units": "s", "tuples": [{"type": "cpu", "value": 2, "average": 0, "std": 0}]},
    "2018-12-17 10:00:00": {"units": "s", "tuples": [{"type": "cpu", "value": 1, "average": 0, "std": 0}]}
  }
}`
	filename := filepath.Join(dir, config.LevelFilename)
	require.NoError(t, os.WriteFile(filename, []byte(legacy), 0644))

	session := openSession(t, New(cfg, nil))
	defer func() { require.NoError(t, session.Close(ctx)) }()
	n, err := session.GetNodeAt(ctx, "legacy")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, []string{"2018-12-17T10:00:00", "2018-12-18T10:00:00"}, n.Dates())

	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()
	rewritten, migrated, err := node.Decode(f)
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.True(t, n.Equal(rewritten))
}
