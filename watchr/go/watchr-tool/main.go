// Command-line application for maintaining a watchr data directory.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog/stdlogging"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/config"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/filterstore"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/ingest"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/node"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/treestore"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/types"
	"github.com/sandialabs/watchr-jenkins-sub000/watchr/go/viewstore"
	"github.com/spf13/cobra"
)

var cfg *config.InstanceConfig

// flags
var (
	configFilename    string
	dataDir           string
	logToStdErr       bool
	verbose           bool
	build             int
	recalculateAll    bool
	preferDescendants bool
	measurable        string
	allDescendants    bool
	includeEmpty      bool
)

func main() {
	cmd := cobra.Command{
		Use: "watchr-tool [sub]",
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if logToStdErr {
				stdlogging.LogToStdErr(verbose)
			}
			var err error
			if configFilename != "" {
				cfg, err = config.Load(configFilename)
				if err != nil {
					return err
				}
			} else {
				cfg = config.New(dataDir)
				if err := cfg.Validate(); err != nil {
					return skerr.Wrapf(err, "Either --config or --data_dir must be supplied")
				}
			}
			return nil
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configFilename, "config", "", "The YAML config file of the data directory.")
	cmd.PersistentFlags().StringVar(&dataDir, "data_dir", "", "The data directory, used with default settings if --config is not given.")
	cmd.PersistentFlags().BoolVar(&logToStdErr, "logtostderr", false, "Otherwise logs are not produced.")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Include debug logs.")

	ingestCmd := &cobra.Command{
		Use:   "ingest [files]",
		Short: "Add report files to the tree.",
		Long:  "Adds the JSON report files to the tree under the build given by --build, skipping any file whose content was already added by any build. Statistics are recalculated before exiting.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  ingestAction,
	}
	ingestCmd.Flags().IntVar(&build, "build", 0, "The build number the files belong to.")

	recalculateCmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Recalculate rolling statistics for every node.",
		RunE:  recalculateAction,
	}
	recalculateCmd.Flags().BoolVar(&recalculateAll, "all", true, "Recalculate every node over its full history.")

	childrenCmd := &cobra.Command{
		Use:   "children [path]",
		Short: "List the nodes below a path.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  childrenAction,
	}
	childrenCmd.Flags().BoolVar(&preferDescendants, "prefer_descendants", false, "Replace children without data for --measurable by their own children.")
	childrenCmd.Flags().StringVar(&measurable, "measurable", "", "The measurement used with --prefer_descendants.")

	searchCmd := &cobra.Command{
		Use:   "search [path] [term]",
		Short: "Find nodes below a path whose path or name matches a regexp.",
		Args:  cobra.ExactArgs(2),
		RunE:  searchAction,
	}
	searchCmd.Flags().BoolVar(&allDescendants, "all", false, "Search every descendant, not only direct children.")
	searchCmd.Flags().BoolVar(&includeEmpty, "empty", false, "Include nodes with no data.")

	rangeCmd := &cobra.Command{
		Use:   "range [path] [measurable]",
		Short: "Print the trailing points of a measurement as JSON.",
		Args:  cobra.ExactArgs(2),
		RunE:  rangeAction,
	}

	failuresCmd := &cobra.Command{
		Use:   "failures [path] [measurable]",
		Short: "List the nodes whose latest point fails against the rolling statistics.",
		Args:  cobra.ExactArgs(2),
		RunE:  failuresAction,
	}

	buildsCmd := &cobra.Command{
		Use: "builds [sub]",
	}
	buildsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the builds with recorded file hashes.",
			RunE:  buildsListAction,
		},
		&cobra.Command{
			Use:   "delete [build]",
			Short: "Forget the file hashes of a build so its files can be ingested again.",
			Args:  cobra.ExactArgs(1),
			RunE:  buildsDeleteAction,
		},
	)

	filterCmd := &cobra.Command{
		Use: "filter [sub]",
	}
	filterCmd.AddCommand(
		&cobra.Command{
			Use:   "add [path] [dates]",
			Short: "Hide dates of a path.",
			Args:  cobra.MinimumNArgs(2),
			RunE:  filterAddAction,
		},
		&cobra.Command{
			Use:   "remove [path] [dates]",
			Short: "Show hidden dates of a path again.",
			Args:  cobra.MinimumNArgs(2),
			RunE:  filterRemoveAction,
		},
		&cobra.Command{
			Use:   "list",
			Short: "List all hidden dates.",
			RunE:  filterListAction,
		},
	)

	viewCmd := &cobra.Command{
		Use: "view [sub]",
	}
	viewCmd.AddCommand(
		&cobra.Command{
			Use:   "add [name] [path:type]...",
			Short: "Add a view. Each dataset is a path and one of value, average or std.",
			Args:  cobra.MinimumNArgs(2),
			RunE:  viewAddAction,
		},
		&cobra.Command{
			Use:   "list",
			Short: "List all views.",
			RunE:  viewListAction,
		},
		&cobra.Command{
			Use:   "delete [uuid]",
			Short: "Delete a view.",
			Args:  cobra.ExactArgs(1),
			RunE:  viewDeleteAction,
		},
	)

	cmd.AddCommand(
		ingestCmd,
		recalculateCmd,
		childrenCmd,
		searchCmd,
		rangeCmd,
		failuresCmd,
		buildsCmd,
		filterCmd,
		viewCmd,
	)

	if err := cmd.Execute(); err != nil {
		sklog.Flush()
		fmt.Println(err)
		os.Exit(1)
	}
	sklog.Flush()
}

// withFilters runs fn with the filter store open and closes it afterwards.
func withFilters(ctx context.Context, fn func(*filterstore.FileStore) error) (err error) {
	filters := filterstore.New(cfg.FilterFile)
	if _, err := filters.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if _, closeErr := filters.Close(ctx); closeErr != nil {
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()
	return fn(filters)
}

// withSession runs fn with a tree store session and ends it afterwards. If
// recalculate is true the session is closed, which recalculates everything
// fn changed, otherwise it is only released.
func withSession(ctx context.Context, recalculate bool, fn func(*treestore.Session) error) error {
	return withFilters(ctx, func(filters *filterstore.FileStore) (err error) {
		session, err := treestore.New(cfg, filters).Open(ctx)
		if err != nil {
			return err
		}
		defer func() {
			end := session.Release
			if recalculate {
				end = session.Close
			}
			if closeErr := end(ctx); closeErr != nil {
				err = multierror.Append(err, closeErr).ErrorOrNil()
			}
		}()
		return fn(session)
	})
}

func withViews(ctx context.Context, fn func(*viewstore.FileStore) error) (err error) {
	views := viewstore.New(cfg.ViewFile)
	if _, err := views.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if _, closeErr := views.Close(ctx); closeErr != nil {
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()
	return fn(views)
}

func printNodes(base string, nodes []*node.LevelNode) {
	for _, n := range nodes {
		fmt.Printf("%s\t%s\t%d\n", treestore.DisplayName(base, n.Path), n.Category, n.Len())
	}
}

func ingestAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	return withSession(ctx, true, func(session *treestore.Session) error {
		res, err := ingest.New(session, nil, build).IngestFiles(ctx, args)
		if res != nil {
			for _, d := range res.Duplicates {
				fmt.Printf("Skipped %s: same content as %s from build %d at %s\n", d.Filename, d.Original.Filename, d.Original.Build, d.Original.Timestamp.Format(types.DateLayout))
			}
			fmt.Printf("Added %d, skipped %d, failed %d\n", len(res.Added), len(res.Duplicates), len(res.Failed))
		}
		return err
	})
}

func recalculateAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg.RecalculateAll = recalculateAll
	return withSession(ctx, false, func(session *treestore.Session) error {
		count, err := session.Recalculate(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Recalculated %d nodes\n", count)
		return nil
	})
}

func childrenAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	return withSession(ctx, false, func(session *treestore.Session) error {
		children, err := session.GetChildrenAt(ctx, path, preferDescendants, measurable)
		if err != nil {
			return err
		}
		printNodes(path, children)
		return nil
	})
}

func searchAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	return withSession(ctx, false, func(session *treestore.Session) error {
		found, err := session.SearchForChildren(ctx, args[0], args[1], allDescendants, includeEmpty)
		if err != nil {
			return err
		}
		printNodes(args[0], found)
		return nil
	})
}

func rangeAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	return withSession(ctx, false, func(session *treestore.Session) error {
		entries, err := session.GetDatesInRange(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	})
}

func failuresAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	return withSession(ctx, false, func(session *treestore.Session) error {
		failures, err := session.GetFailures(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		for _, n := range failures {
			fmt.Println(n.Path)
		}
		return nil
	})
}

func buildsListAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	return withSession(ctx, false, func(session *treestore.Session) error {
		builds, err := session.Builds(ctx)
		if err != nil {
			return err
		}
		for _, b := range builds {
			fmt.Println(b)
		}
		return nil
	})
}

func buildsDeleteAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	b, err := strconv.Atoi(args[0])
	if err != nil {
		return skerr.Wrapf(err, "Invalid build number %q", args[0])
	}
	return withSession(ctx, false, func(session *treestore.Session) error {
		n, err := session.DeleteBuild(ctx, b)
		if err != nil {
			return err
		}
		fmt.Printf("Forgot %d file hashes\n", n)
		return nil
	})
}

func filterAddAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	return withFilters(ctx, func(filters *filterstore.FileStore) error {
		return filters.AddFilteredDates(ctx, args[0], args[1:]...)
	})
}

func filterRemoveAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	return withFilters(ctx, func(filters *filterstore.FileStore) error {
		return filters.RemoveFilteredDates(ctx, args[0], args[1:]...)
	})
}

func filterListAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	return withFilters(ctx, func(filters *filterstore.FileStore) error {
		all, err := filters.GetFilterData(ctx)
		if err != nil {
			return err
		}
		for _, f := range all {
			fmt.Printf("%s\t%s\n", f.Path, strings.Join(f.FilteredDates, " "))
		}
		return nil
	})
}

// parseDataset parses "path:type".
func parseDataset(s string) (viewstore.ViewDataset, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 {
		return viewstore.ViewDataset{}, skerr.Fmt("Dataset %q must be of the form path:type", s)
	}
	dt, err := types.ParseDatasetType(s[i+1:])
	if err != nil {
		return viewstore.ViewDataset{}, skerr.Wrap(err)
	}
	return viewstore.ViewDataset{Path: s[:i], DatasetType: dt}, nil
}

func viewAddAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	datasets := []viewstore.ViewDataset{}
	for _, arg := range args[1:] {
		ds, err := parseDataset(arg)
		if err != nil {
			return err
		}
		datasets = append(datasets, ds)
	}
	return withViews(ctx, func(views *viewstore.FileStore) error {
		v := viewstore.NewView(args[0], datasets...)
		if err := views.AddView(ctx, v); err != nil {
			return err
		}
		fmt.Println(v.UUID)
		return nil
	})
}

func viewListAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	return withViews(ctx, func(views *viewstore.FileStore) error {
		all, err := views.GetViews(ctx)
		if err != nil {
			return err
		}
		for _, v := range all {
			parts := make([]string, 0, len(v.Datasets))
			for _, ds := range v.Datasets {
				parts = append(parts, ds.Path+":"+ds.DatasetType.String())
			}
			fmt.Printf("%s\t%s\t%s\n", v.UUID, v.Name, strings.Join(parts, " "))
		}
		return nil
	})
}

func viewDeleteAction(c *cobra.Command, args []string) error {
	ctx := context.Background()
	return withViews(ctx, func(views *viewstore.FileStore) error {
		if _, err := views.GetView(ctx, args[0]); err != nil {
			return err
		}
		return views.DeleteView(ctx, args[0])
	})
}
