package kvbench

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/lotusdblabs/kvbench/engine"
	"github.com/lotusdblabs/kvbench/engine/memdb"
)

var errInjected = errors.New("injected failure")

// testOptions keeps every iteration small enough for unit tests.
func testOptions(t testing.TB) Options {
	opts := DefaultOptions
	opts.DirPath = t.TempDir()
	opts.Small = RecordProfile{Name: SmallTable, KeySize: 8, ValueSize: 32, Count: 2000}
	opts.Large = RecordProfile{Name: LargeTable, KeySize: 32, ValueSize: 1024, Count: 200}
	opts.Iterations = 2
	opts.BatchSize = 100
	opts.ExtendedBatchSize = 200
	opts.Geometry = engine.Geometry{MaxSize: 64 * engine.MiB, GrowthStep: engine.MiB}
	opts.ProgressInterval = 0
	opts.Seed = 42
	return opts
}

func provision(t testing.TB, e engine.Engine, opts Options, cfg StorageConfiguration) *Instance {
	t.Helper()
	inst, err := NewProvisioner(e, opts, nil).Provision(opts.InstancePath(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close() })
	return inst
}

func memInstance(t testing.TB, layout Layout) (*Instance, Options) {
	t.Helper()
	opts := testOptions(t)
	return provision(t, memdb.New(), opts, StorageConfiguration{Layout: layout}), opts
}

// countingDB counts transactions and can fail the n-th put.
type countingDB struct {
	engine.DB
	writes, reads, commits, aborts, puts int
	failPut                             int
}

func (d *countingDB) BeginWrite() (engine.RWTxn, error) {
	tx, err := d.DB.BeginWrite()
	if err != nil {
		return nil, err
	}
	d.writes++
	return &countingTxn{RWTxn: tx, db: d}, nil
}

func (d *countingDB) BeginRead() (engine.Txn, error) {
	d.reads++
	return d.DB.BeginRead()
}

type countingTxn struct {
	engine.RWTxn
	db *countingDB
}

func (t *countingTxn) Put(tb *engine.Table, key, value []byte) error {
	t.db.puts++
	if t.db.puts == t.db.failPut {
		return errInjected
	}
	return t.RWTxn.Put(tb, key, value)
}

func (t *countingTxn) Commit() error {
	t.db.commits++
	return t.RWTxn.Commit()
}

func (t *countingTxn) Abort() {
	t.db.aborts++
	t.RWTxn.Abort()
}
