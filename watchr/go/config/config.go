// Package config holds the configuration of a watchr data directory.
package config

import (
	"os"
	"path/filepath"

	"github.com/sandialabs/watchr-jenkins-sub000/go/skerr"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultRollingRange is the number of points in each rolling window.
	DefaultRollingRange = 30

	// DefaultUnit is used for records that do not name their units.
	DefaultUnit = "seconds"

	// DefaultRootAlias names the tree root node.
	DefaultRootAlias = "root"

	// DefaultRoundTo is the number of decimal places in range queries.
	DefaultRoundTo = 3

	// DefaultTimeScale is the number of trailing dates in range queries.
	DefaultTimeScale = 30

	// DefaultNodeCacheSize is the number of LevelNodes held in memory per
	// session.
	DefaultNodeCacheSize = 1024

	// NodesDir is the directory under the data dir that holds the tree.
	NodesDir = "nodes"

	// LevelFilename is the name of the record file in each tree directory.
	LevelFilename = "level.json"

	// BuildHashesDir holds the build hash database.
	BuildHashesDir = "buildhashes"

	// FiltersFilename is the default filter store file.
	FiltersFilename = "filters.json"

	// ViewsFilename is the default view store file.
	ViewsFilename = "views.json"
)

// InstanceConfig is the configuration of one data directory.
type InstanceConfig struct {
	// DataDir is the directory that holds all stored state.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// RollingRange is the maximum number of points averaged for each date.
	RollingRange int `json:"rolling_range" yaml:"rolling_range"`

	// DefaultUnit is used when a report element has no units.
	DefaultUnit string `json:"default_unit" yaml:"default_unit"`

	// RootAlias is the name given to a report that has no name.
	RootAlias string `json:"root_alias" yaml:"root_alias"`

	// RecalculateAll recalculates every node at close, not only those
	// changed during the session.
	RecalculateAll bool `json:"recalculate_all" yaml:"recalculate_all"`

	// UseHiddenValues includes filtered dates in rolling windows.
	UseHiddenValues bool `json:"use_hidden_values" yaml:"use_hidden_values"`

	AvgFailIfGreater    bool `json:"avg_fail_if_greater" yaml:"avg_fail_if_greater"`
	StdDevFailIfGreater bool `json:"std_dev_fail_if_greater" yaml:"std_dev_fail_if_greater"`

	RoundTo   int `json:"round_to" yaml:"round_to"`
	TimeScale int `json:"time_scale" yaml:"time_scale"`

	NodeCacheSize int `json:"node_cache_size" yaml:"node_cache_size"`

	// FilterFile and ViewFile default to files in DataDir.
	FilterFile string `json:"filter_file" yaml:"filter_file"`
	ViewFile   string `json:"view_file" yaml:"view_file"`
}

// New returns an InstanceConfig for dataDir with every default applied.
func New(dataDir string) *InstanceConfig {
	ret := &InstanceConfig{
		DataDir:          dataDir,
		RollingRange:     DefaultRollingRange,
		DefaultUnit:      DefaultUnit,
		RootAlias:        DefaultRootAlias,
		AvgFailIfGreater: true,
		RoundTo:          DefaultRoundTo,
		TimeScale:        DefaultTimeScale,
		NodeCacheSize:    DefaultNodeCacheSize,
	}
	ret.applyDefaults()
	return ret
}

// Load reads a YAML config file. Fields missing from the file keep their
// defaults.
func Load(path string) (*InstanceConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to read config %s", path)
	}
	ret := New("")
	if err := yaml.Unmarshal(b, ret); err != nil {
		return nil, skerr.Wrapf(err, "Failed to parse config %s", path)
	}
	if ret.DataDir != "" && !filepath.IsAbs(ret.DataDir) {
		ret.DataDir = filepath.Join(filepath.Dir(path), ret.DataDir)
	}
	ret.applyDefaults()
	if err := ret.Validate(); err != nil {
		return nil, skerr.Wrapf(err, "Invalid config %s", path)
	}
	return ret, nil
}

func (c *InstanceConfig) applyDefaults() {
	if c.DefaultUnit == "" {
		c.DefaultUnit = DefaultUnit
	}
	if c.RootAlias == "" {
		c.RootAlias = DefaultRootAlias
	}
	if c.DataDir == "" {
		return
	}
	if c.FilterFile == "" {
		c.FilterFile = filepath.Join(c.DataDir, FiltersFilename)
	}
	if c.ViewFile == "" {
		c.ViewFile = filepath.Join(c.DataDir, ViewsFilename)
	}
}

// Validate returns an error if the config cannot be used.
func (c *InstanceConfig) Validate() error {
	if c.DataDir == "" {
		return skerr.Fmt("data_dir must be set")
	}
	if c.RollingRange < 1 {
		return skerr.Fmt("rolling_range must be at least 1, got %d", c.RollingRange)
	}
	if c.RoundTo < 0 {
		return skerr.Fmt("round_to must not be negative, got %d", c.RoundTo)
	}
	if c.NodeCacheSize < 1 {
		return skerr.Fmt("node_cache_size must be at least 1, got %d", c.NodeCacheSize)
	}
	return nil
}

// NodesPath returns the directory that holds the tree.
func (c *InstanceConfig) NodesPath() string {
	return filepath.Join(c.DataDir, NodesDir)
}

// BuildHashesPath returns the directory of the build hash database.
func (c *InstanceConfig) BuildHashesPath() string {
	return filepath.Join(c.DataDir, BuildHashesDir)
}
