package kvbench

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lotusdblabs/kvbench/engine"
)

// Bench runs the case matrix against one engine.
type Bench struct {
	opts   Options
	engine engine.Engine
	log    *zap.Logger
	prov   *Provisioner
	src    *Source
}

// New validates opts and prepares a run. A nil logger discards logs.
func New(opts Options, e engine.Engine, log *zap.Logger) (*Bench, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errors.Wrap(ErrInvalidOptions, "no engine")
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("engine", e.Name()))
	return &Bench{
		opts:   opts,
		engine: e,
		log:    log,
		prov:   NewProvisioner(e, opts, log),
		src:    NewSource(opts.Seed),
	}, nil
}

// Run executes every planned case Iterations times. An error from any
// iteration ends the run and no report is returned.
func (b *Bench) Run(ctx context.Context) (*Report, error) {
	if err := os.MkdirAll(b.opts.DirPath, os.ModePerm); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "create %s", b.opts.DirPath), ErrFilesystem)
	}
	fileLock, err := lockTarget(b.opts.DirPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fileLock.Unlock() }()

	report, err := b.newReport()
	if err != nil {
		return nil, err
	}
	b.log.Info("benchmark started",
		zap.String("run_id", report.RunID),
		zap.Uint64("seed", report.Seed),
		zap.String("path", b.opts.InstancePath()),
		zap.Int("iterations", b.opts.Iterations),
		zap.String("payload", humanize.IBytes(uint64(b.opts.PayloadSize()))),
	)

	for si, suite := range Plan(b.opts) {
		result := BenchmarkResult{Name: suite.Name}
		for ci, c := range suite.Cases {
			cr := CaseResult{Label: c.Label, Kind: c.Kind, Config: c.Config, BatchSize: c.BatchSize}
			for it := 0; it < b.opts.Iterations; it++ {
				src := b.src.Derive(uint64(si), uint64(ci), uint64(it))
				rec, err := isolate(ctx, func(ctx context.Context) (MeasurementRecord, error) {
					return b.runIteration(ctx, c, it, src)
				})
				if err != nil {
					return nil, errors.Wrapf(err, "%s, iteration %d", c.Label, it)
				}
				cr.Measurements = append(cr.Measurements, rec)
			}
			result.Cases = append(result.Cases, cr)
		}
		report.Benchmarks = append(report.Benchmarks, result)
	}

	if b.opts.Cleanup {
		if err := os.RemoveAll(b.opts.InstancePath()); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "cleanup instance"), ErrFilesystem)
		}
	}
	report.FinishedAt = time.Now()
	b.log.Info("benchmark finished", zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (b *Bench) newReport() (*Report, error) {
	node, err := snowflake.NewNode(int64(os.Getpid() % 1024))
	if err != nil {
		return nil, errors.Wrap(err, "run id")
	}
	hostname, _ := os.Hostname()
	return &Report{
		RunID:  node.Generate().String(),
		Engine: b.engine.Name(),
		Host: Host{
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			NumCPU:    runtime.NumCPU(),
			GoVersion: runtime.Version(),
			Hostname:  hostname,
		},
		StartedAt:  time.Now(),
		Seed:       b.src.Seed(),
		Iterations: b.opts.Iterations,
		Extended:   b.opts.Extended,
		Profiles:   []RecordProfile{b.opts.Large, b.opts.Small},
	}, nil
}

// isolate runs fn on its own goroutine and waits for it. A panic becomes an
// error instead of taking the process down.
func isolate(ctx context.Context, fn func(ctx context.Context) (MeasurementRecord, error)) (MeasurementRecord, error) {
	var rec MeasurementRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.WithStack(errors.Wrapf(ErrIterationPanic, "%v", r))
			}
		}()
		rec, err = fn(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return MeasurementRecord{}, err
	}
	return rec, nil
}

func (b *Bench) total(c Case) int64 {
	var n int
	if c.Config.Layout == DuplicateKey {
		n = b.opts.Small.Count
	} else {
		n = b.opts.Small.Count + b.opts.Large.Count
	}
	if c.Kind == ReadCase {
		n *= 2
	}
	return int64(n)
}

func (b *Bench) runIteration(ctx context.Context, c Case, iteration int, src *Source) (MeasurementRecord, error) {
	inst, err := b.prov.Provision(b.opts.InstancePath(), c.Config)
	if err != nil {
		return MeasurementRecord{}, err
	}
	defer func() { _ = inst.Close() }()

	log := b.log.With(zap.String("case", c.Label), zap.Int("iteration", iteration))
	tracker := StartTracker(log, c.Label, iteration, b.total(c), b.opts.ProgressInterval)
	defer tracker.Finish()

	exec := NewExecutor(c.BatchSize, tracker, log)
	col := NewCollector(c.Config.Layout)

	switch c.Config.Layout {
	case PlainKV:
		err = b.plain(ctx, exec, inst, c.Kind, col, src)
	case DuplicateKey:
		err = b.dup(ctx, exec, inst, c.Kind, col, src)
	default:
		err = errors.Wrapf(ErrInvalidOptions, "layout %s", c.Config.Layout)
	}
	if err != nil {
		return MeasurementRecord{}, err
	}

	if err := inst.Close(); err != nil {
		return MeasurementRecord{}, errors.Mark(errors.Wrap(err, "close instance"), ErrTransaction)
	}
	size, err := inst.Size()
	if err != nil {
		return MeasurementRecord{}, err
	}
	rec, err := col.Seal(size)
	if err != nil {
		return MeasurementRecord{}, err
	}
	log.Debug("iteration measured",
		zap.Float64s("durations", rec.Durations[:]),
		zap.String("size", humanize.IBytes(rec.Size)),
	)
	return rec, nil
}

// plain writes the large then the small profile. Read cases throw those
// timings away and time shuffled lookups instead.
func (b *Bench) plain(ctx context.Context, exec *Executor, inst *Instance, kind CaseKind, col *Collector, src *Source) error {
	large := Generate(b.opts.Large, src)
	largeWrite, err := exec.WritePlain(ctx, inst.DB, inst.Large, large)
	col.Add(largeWrite)
	if err != nil {
		return err
	}
	small := Generate(b.opts.Small, src)
	smallWrite, err := exec.WritePlain(ctx, inst.DB, inst.Small, small)
	col.Add(smallWrite)
	if err != nil || kind == WriteCase {
		return err
	}

	// only the records of full batches were written
	col.Discard()
	reads := PrepareReads(large.Prefix(largeWrite.Ops), src)
	p, err := exec.ReadPlain(ctx, inst.DB, inst.Large, reads)
	col.Add(p)
	if err != nil {
		return err
	}
	reads = PrepareReads(small.Prefix(smallWrite.Ops), src)
	p, err = exec.ReadPlain(ctx, inst.DB, inst.Small, reads)
	col.Add(p)
	return err
}

// dup only exercises the small profile, stored as duplicates.
func (b *Bench) dup(ctx context.Context, exec *Executor, inst *Instance, kind CaseKind, col *Collector, src *Source) error {
	w := GenerateDup(b.opts.Small, src)
	p, err := exec.WriteDup(ctx, inst.DB, inst.Small, w)
	col.Add(p)
	if err != nil || kind == WriteCase {
		return err
	}
	col.Discard()
	p, err = exec.ReadDup(ctx, inst.DB, inst.Small, PrepareReads(w.Prefix(p.Ops), src))
	col.Add(p)
	return err
}

// String describes the run for the consent prompt.
func (b *Bench) String() string {
	return fmt.Sprintf("%s at %s, %d iterations, up to %s per iteration",
		b.engine.Name(), b.opts.InstancePath(), b.opts.Iterations, humanize.IBytes(uint64(b.opts.PayloadSize())))
}
