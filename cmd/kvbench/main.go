package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lotusdblabs/kvbench"
	"github.com/lotusdblabs/kvbench/engine"
	"github.com/lotusdblabs/kvbench/engine/badgerdb"
	"github.com/lotusdblabs/kvbench/engine/boltdb"
	"github.com/lotusdblabs/kvbench/engine/memdb"
	"github.com/lotusdblabs/kvbench/engine/pebbledb"
)

var errDeclined = errors.New("benchmark declined")

var engines = map[string]engine.Engine{
	boltdb.EngineName:   boltdb.New(),
	badgerdb.EngineName: badgerdb.New(),
	pebbledb.EngineName: pebbledb.New(),
	memdb.EngineName:    memdb.New(),
}

func lookupEngine(name string) (engine.Engine, error) {
	e, ok := engines[name]
	if !ok {
		return nil, errors.Newf("unknown engine %q, want one of bolt, badger, pebble, mem", name)
	}
	return e, nil
}

type flags struct {
	path       string
	engine     string
	config     string
	extended   bool
	iterations int
	seed       uint64
	suites     []string
	yes        bool
	logFile    string
	logLevel   string
	cleanup    bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "kvbench",
		Short: "Benchmark an embedded transactional key-value engine",
		Long: `kvbench provisions a fresh instance for every configuration of the
durability, mapping and layout matrix, writes and reads fixed-shape records in
batched transactions and stores the timings as <path>/<engine>_report.json.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.path, "path", "", "target directory, everything in it may be deleted")
	fs.StringVar(&f.engine, "engine", boltdb.EngineName, "engine to benchmark: bolt, badger, pebble or mem")
	fs.StringVar(&f.config, "config", "", "YAML file overriding the default options")
	fs.BoolVar(&f.extended, "extended", false, "also run the large batch cases")
	fs.IntVar(&f.iterations, "iterations", kvbench.DefaultIterations, "iterations per case")
	fs.Uint64Var(&f.seed, "seed", 0, "workload seed, 0 picks one")
	fs.StringSliceVar(&f.suites, "suite", nil, "suite to run: plain or dup, repeatable")
	fs.BoolVarP(&f.yes, "yes", "y", false, "do not ask before deleting the target directory contents")
	fs.StringVar(&f.logFile, "log-file", "", "also write logs to this rotated file")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level")
	fs.BoolVar(&f.cleanup, "cleanup", false, "remove the instance once the run is over")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func run(cmd *cobra.Command, f *flags) error {
	level, err := kvbench.ParseLevel(f.logLevel)
	if err != nil {
		return err
	}
	logOpts := []kvbench.Option{kvbench.WithLevel(level), kvbench.WithField("engine", f.engine)}
	if f.logFile != "" {
		logOpts = append(logOpts, kvbench.WithFileRotation(f.logFile))
	}
	log, err := kvbench.NewJSONLogger(logOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts, err := buildOptions(cmd, f)
	if err != nil {
		return err
	}
	e, err := lookupEngine(f.engine)
	if err != nil {
		return err
	}
	b, err := kvbench.New(opts, e, log)
	if err != nil {
		return err
	}

	if !f.yes {
		if err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), b.String(), opts.InstancePath()); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := b.Run(ctx)
	if err != nil {
		log.Error("benchmark failed", zap.Error(err))
		return err
	}
	path, err := kvbench.WriteReport(opts.DirPath, report)
	if err != nil {
		return err
	}
	log.Info("report written", zap.String("path", path))
	return printSummary(cmd.OutOrStdout(), report)
}

// buildOptions layers the config file over the defaults and explicit flags
// over both.
func buildOptions(cmd *cobra.Command, f *flags) (kvbench.Options, error) {
	opts := kvbench.DefaultOptions
	if f.config != "" {
		var err error
		if opts, err = kvbench.LoadOptions(f.config, opts); err != nil {
			return opts, err
		}
	}
	fs := cmd.Flags()
	opts.DirPath = f.path
	if fs.Changed("extended") {
		opts.Extended = f.extended
	}
	if fs.Changed("iterations") {
		opts.Iterations = f.iterations
	}
	if fs.Changed("seed") {
		opts.Seed = f.seed
	}
	if fs.Changed("suite") {
		opts.Suites = f.suites
	}
	if fs.Changed("cleanup") {
		opts.Cleanup = f.cleanup
	}
	return opts, nil
}

func confirm(in io.Reader, out io.Writer, what, instance string) error {
	fmt.Fprintf(out, "About to benchmark %s.\n", what)
	fmt.Fprintf(out, "WARNING: %s will be deleted and rewritten for every iteration.\n", instance)
	fmt.Fprint(out, "Continue? [y/N] ")
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return errDeclined
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
