package kvbench

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotusdblabs/kvbench/engine"
	"github.com/lotusdblabs/kvbench/engine/boltdb"
	"github.com/lotusdblabs/kvbench/engine/memdb"
)

func TestBenchRunMem(t *testing.T) {
	opts := testOptions(t)
	opts.Iterations = 3
	opts.Extended = true
	b, err := New(opts, memdb.New(), nil)
	require.NoError(t, err)

	r, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, memdb.EngineName, r.Engine)
	assert.Equal(t, uint64(42), r.Seed)
	assert.NotEmpty(t, r.RunID)
	assert.False(t, r.FinishedAt.Before(r.StartedAt))
	require.Len(t, r.Benchmarks, 2)

	for _, res := range r.Benchmarks {
		require.Len(t, res.Cases, 8)
		for _, c := range res.Cases {
			require.Len(t, c.Measurements, 3, c.Label)
			for _, m := range c.Measurements {
				if c.Config.Layout == DuplicateKey {
					assert.Zero(t, m.Durations[0], c.Label)
				} else {
					assert.Greater(t, m.Durations[0], 0.0, c.Label)
				}
				assert.Greater(t, m.Durations[1], 0.0, c.Label)
				checkPhases(t, c, m)
			}
		}
	}
}

func checkPhases(t *testing.T, c CaseResult, m MeasurementRecord) {
	t.Helper()
	timed := 0
	for _, p := range m.Phases {
		if p.Discarded {
			assert.Equal(t, OpWrite, p.Op, c.Label)
			continue
		}
		timed++
		assert.Zero(t, p.Misses, c.Label)
		if c.Kind == ReadCase {
			assert.Equal(t, OpRead, p.Op, c.Label)
		} else {
			assert.Equal(t, OpWrite, p.Op, c.Label)
		}
	}
	want := map[Layout]int{PlainKV: 2, DuplicateKey: 1}[c.Config.Layout]
	assert.Equal(t, want, timed, c.Label)
	if c.Kind == ReadCase {
		assert.Len(t, m.Phases, 2*want, c.Label)
	}
}

func TestBenchRunBolt(t *testing.T) {
	opts := testOptions(t)
	opts.Iterations = 1
	b, err := New(opts, boltdb.New(), nil)
	require.NoError(t, err)

	r, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, r.Benchmarks, 2)

	first := r.Benchmarks[0].Cases[0]
	require.Equal(t, StorageConfiguration{Durability: engine.Durable, Mapping: engine.MemoryMapped, Layout: PlainKV}, first.Config)
	require.Len(t, first.Measurements, 1)
	assert.Greater(t, first.Measurements[0].Size, uint64(opts.Small.PayloadSize()))

	for _, res := range r.Benchmarks {
		for _, c := range res.Cases {
			for _, m := range c.Measurements {
				assert.Greater(t, m.Size, uint64(0), c.Label)
				checkPhases(t, c, m)
			}
		}
	}

	path, err := WriteReport(opts.DirPath, r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(opts.DirPath, "bolt_report.json"), path)
}

func TestBenchSuiteFilterAndCleanup(t *testing.T) {
	opts := testOptions(t)
	opts.Iterations = 1
	opts.Suites = []string{SuiteDup}
	opts.Cleanup = true
	b, err := New(opts, memdb.New(), nil)
	require.NoError(t, err)

	r, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, r.Benchmarks, 1)
	assert.Equal(t, DupSuiteName, r.Benchmarks[0].Name)
	assert.NoDirExists(t, opts.InstancePath())
}

func TestBenchReproducible(t *testing.T) {
	run := func() *Report {
		opts := testOptions(t)
		opts.Iterations = 1
		opts.Suites = []string{SuitePlain}
		b, err := New(opts, boltdb.New(), nil)
		require.NoError(t, err)
		r, err := b.Run(context.Background())
		require.NoError(t, err)
		return r
	}
	a, b := run(), run()
	for i, c := range a.Benchmarks[0].Cases {
		assert.Equal(t, c.Measurements[0].Size, b.Benchmarks[0].Cases[i].Measurements[0].Size, c.Label)
	}
}

func TestBenchTargetLocked(t *testing.T) {
	opts := testOptions(t)
	held := flock.New(filepath.Join(opts.DirPath, lockFileName))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	b, err := New(opts, memdb.New(), nil)
	require.NoError(t, err)
	_, err = b.Run(context.Background())
	assert.ErrorIs(t, err, ErrTargetLocked)
}

func TestBenchCanceled(t *testing.T) {
	opts := testOptions(t)
	b, err := New(opts, memdb.New(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := b.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, r)
}

func TestBenchNewRejectsOptions(t *testing.T) {
	opts := testOptions(t)
	opts.Iterations = 0
	_, err := New(opts, memdb.New(), nil)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = New(testOptions(t), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestIsolateRecoversPanic(t *testing.T) {
	_, err := isolate(context.Background(), func(context.Context) (MeasurementRecord, error) {
		panic("boom")
	})
	assert.ErrorIs(t, err, ErrIterationPanic)
	assert.Contains(t, err.Error(), "boom")

	rec, err := isolate(context.Background(), func(context.Context) (MeasurementRecord, error) {
		return MeasurementRecord{Size: 7}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), rec.Size)
}

func TestBenchUnevenBatches(t *testing.T) {
	opts := testOptions(t)
	opts.Iterations = 1
	opts.Small.Count = 2050
	opts.Large.Count = 230
	b, err := New(opts, memdb.New(), nil)
	require.NoError(t, err)

	r, err := b.Run(context.Background())
	require.NoError(t, err)
	for _, res := range r.Benchmarks {
		for _, c := range res.Cases {
			for _, m := range c.Measurements {
				checkPhases(t, c, m)
				for _, p := range m.Phases {
					if p.Op == OpRead {
						assert.Zero(t, p.Dropped, c.Label)
						assert.Equal(t, p.Batches*c.BatchSize, p.Ops, c.Label)
					}
				}
			}
		}
	}
}
