package kvbench

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/lotusdblabs/kvbench/engine"
)

const (
	// InstanceDirName is the directory under DirPath that holds the instance
	// being measured. It is removed before every iteration.
	InstanceDirName = "benchmark.db"

	DefaultIterations        = 3
	DefaultBatchSize         = 1000
	DefaultExtendedBatchSize = 10000
	DefaultProgressInterval  = 2 * time.Second
)

// Suite keys accepted by Options.Suites.
const (
	SuitePlain = "plain"
	SuiteDup   = "dup"
)

// Options for a benchmark run.
type Options struct {
	// DirPath is the target directory. The instance, the lock file and the
	// report all live in it.
	DirPath string `yaml:"dir_path"`

	Small RecordProfile `yaml:"small"`
	Large RecordProfile `yaml:"large"`

	// Iterations is how often every case is repeated.
	Iterations int `yaml:"iterations"`

	BatchSize         int  `yaml:"batch_size"`
	ExtendedBatchSize int  `yaml:"extended_batch_size"`
	Extended          bool `yaml:"extended"`

	Geometry   engine.Geometry `yaml:"geometry"`
	MaxTables  int             `yaml:"max_tables"`
	MaxReaders int             `yaml:"max_readers"`

	// Seed seeds every workload. Zero picks one from the clock, the chosen
	// seed is recorded in the report.
	Seed uint64 `yaml:"seed"`

	// Suites restricts the run to the named suites, empty runs all.
	Suites []string `yaml:"suites"`

	// ProgressInterval is how often progress is logged, zero disables it.
	ProgressInterval time.Duration `yaml:"progress_interval"`

	// Cleanup removes the instance directory once the run is over.
	Cleanup bool `yaml:"cleanup"`
}

var DefaultOptions = Options{
	Small:             SmallProfile,
	Large:             LargeProfile,
	Iterations:        DefaultIterations,
	BatchSize:         DefaultBatchSize,
	ExtendedBatchSize: DefaultExtendedBatchSize,
	Geometry:          engine.DefaultGeometry,
	MaxTables:         engine.MinMaxTables,
	MaxReaders:        engine.MinMaxReaders,
	ProgressInterval:  DefaultProgressInterval,
}

// InstancePath is where the measured instance lives.
func (o Options) InstancePath() string { return filepath.Join(o.DirPath, InstanceDirName) }

// PayloadSize estimates the raw bytes one iteration writes at most.
func (o Options) PayloadSize() int64 { return o.Small.PayloadSize() + o.Large.PayloadSize() }

// RunsSuite reports whether the suite with key runs under these options.
func (o Options) RunsSuite(key string) bool {
	return len(o.Suites) == 0 || slices.Contains(o.Suites, key)
}

func (o Options) Validate() error {
	if o.DirPath == "" {
		return errors.Wrap(ErrInvalidOptions, "target directory path can not be empty")
	}
	if err := o.Small.Validate(); err != nil {
		return err
	}
	if err := o.Large.Validate(); err != nil {
		return err
	}
	if o.Small.Name == o.Large.Name {
		return errors.Wrapf(ErrInvalidOptions, "both profiles write table %s", o.Small.Name)
	}
	if o.Iterations <= 0 {
		return errors.Wrapf(ErrInvalidOptions, "iterations %d", o.Iterations)
	}
	if o.BatchSize <= 0 || (o.Extended && o.ExtendedBatchSize <= 0) {
		return errors.Wrapf(ErrInvalidOptions, "batch size %d, extended batch size %d", o.BatchSize, o.ExtendedBatchSize)
	}
	if o.ProgressInterval < 0 {
		return errors.Wrapf(ErrInvalidOptions, "progress interval %s", o.ProgressInterval)
	}
	for _, s := range o.Suites {
		if s != SuitePlain && s != SuiteDup {
			return errors.Wrapf(ErrUnknownSuite, "%q", s)
		}
	}
	cfg := engine.Config{MaxTables: o.MaxTables, MaxReaders: o.MaxReaders, Geometry: o.Geometry}
	if err := cfg.Validate(); err != nil {
		return errors.Mark(err, ErrInvalidOptions)
	}
	return nil
}

// LoadOptions overlays the YAML file at path onto base. Fields the file does
// not mention keep their base value.
func LoadOptions(path string, base Options) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, errors.Mark(errors.Wrapf(err, "read config %s", path), ErrFilesystem)
	}
	opts := base
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return base, errors.Mark(errors.Wrapf(err, "parse config %s", path), ErrInvalidOptions)
	}
	return opts, nil
}
