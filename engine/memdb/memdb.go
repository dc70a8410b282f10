// Package memdb is an in-memory engine on a copy-on-write btree. It has no
// durability at all and measures the cost of the benchmark harness itself.
package memdb

import (
	"bytes"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/lotusdblabs/kvbench/engine"
)

const (
	EngineName = "mem"

	degree = 32
)

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool { return bytes.Compare(a.key, b.key) < 0 }

type Engine struct{}

func New() Engine { return Engine{} }

func (Engine) Name() string { return EngineName }

// Open creates an empty in-memory instance. The directory is created so the
// on-disk size can still be sampled, it stays empty.
func (Engine) Open(path string, cfg engine.Config) (engine.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "create instance directory %s", path)
	}
	if cfg.Logger != nil {
		cfg.Logger.Debug("mem instance opened, durability and mapping ignored",
			zap.String("path", path))
	}
	return &DB{
		Catalog: engine.NewCatalog(cfg.MaxTables, cfg.MaxReaders),
		tree:    btree.NewG[item](degree, less),
	}, nil
}

// DB is an in-memory instance. Writers are serialized, readers work on a
// clone of the last committed tree.
type DB struct {
	*engine.Catalog
	writer sync.Mutex
	mu     sync.Mutex
	tree   *btree.BTreeG[item]
}

func (d *DB) snapshot() *btree.BTreeG[item] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tree.Clone()
}

func (d *DB) BeginWrite() (engine.RWTxn, error) {
	d.writer.Lock()
	return &rwTxn{txn: txn{tree: d.snapshot()}, db: d}, nil
}

func (d *DB) BeginRead() (engine.Txn, error) {
	if err := d.AcquireReader(); err != nil {
		return nil, err
	}
	return &txn{tree: d.snapshot(), release: d.ReleaseReader}, nil
}

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tree.Clear(false)
	return nil
}

type txn struct {
	tree    *btree.BTreeG[item]
	release func()
	closed  bool
}

func (t *txn) Get(tb *engine.Table, key []byte) ([]byte, bool, error) {
	if t.closed {
		return nil, false, engine.ErrTxnClosed
	}
	if tb.IsDupSort() {
		return nil, false, engine.ErrDupSort
	}
	it, ok := t.tree.Get(item{key: engine.AppendTableKey(nil, tb, key)})
	if !ok {
		return nil, false, nil
	}
	return it.value, true, nil
}

func (t *txn) Cursor(tb *engine.Table) (engine.Cursor, error) {
	if t.closed {
		return nil, engine.ErrTxnClosed
	}
	if !tb.IsDupSort() {
		return nil, engine.ErrNotDupSort
	}
	return &cursor{t: t, table: tb}, nil
}

func (t *txn) Discard() {
	if t.closed {
		return
	}
	t.closed = true
	if t.release != nil {
		t.release()
	}
}

type rwTxn struct {
	txn
	db      *DB
	created []*engine.Table
}

func (t *rwTxn) CreateTable(name string, flags engine.TableFlags) (*engine.Table, error) {
	if t.closed {
		return nil, engine.ErrTxnClosed
	}
	tb, err := t.db.Reserve(name, flags)
	if err != nil {
		return nil, err
	}
	t.created = append(t.created, tb)
	return tb, nil
}

func (t *rwTxn) Put(tb *engine.Table, key, value []byte) error {
	if t.closed {
		return engine.ErrTxnClosed
	}
	if tb.IsDupSort() {
		return engine.ErrDupSort
	}
	if len(key) == 0 {
		return engine.ErrKeyIsEmpty
	}
	t.tree.ReplaceOrInsert(item{
		key:   engine.AppendTableKey(nil, tb, key),
		value: append([]byte(nil), value...),
	})
	return nil
}

func (t *rwTxn) RWCursor(tb *engine.Table) (engine.RWCursor, error) {
	if t.closed {
		return nil, engine.ErrTxnClosed
	}
	if !tb.IsDupSort() {
		return nil, engine.ErrNotDupSort
	}
	return &rwCursor{cursor: cursor{t: &t.txn, table: tb}}, nil
}

func (t *rwTxn) Commit() error {
	if t.closed {
		return engine.ErrTxnClosed
	}
	t.closed = true
	t.db.mu.Lock()
	t.db.tree = t.tree
	t.db.mu.Unlock()
	t.db.Publish(t.created...)
	t.db.writer.Unlock()
	return nil
}

func (t *rwTxn) Abort() {
	if t.closed {
		return
	}
	t.closed = true
	t.db.Release(t.created...)
	t.db.writer.Unlock()
}

type cursor struct {
	t     *txn
	table *engine.Table
	seek  []byte
}

func (c *cursor) GetBoth(key, prefix []byte) ([]byte, bool, error) {
	if c.t.closed {
		return nil, false, engine.ErrTxnClosed
	}
	c.seek = engine.AppendDupKey(append(c.seek[:0], c.table.ID), key, prefix)
	var found []byte
	c.t.tree.AscendGreaterOrEqual(item{key: c.seek}, func(it item) bool {
		found = it.key
		return false
	})
	if found == nil {
		return nil, false, nil
	}
	return engine.MatchTableDup(found, c.seek)
}

func (c *cursor) Close() {}

type rwCursor struct {
	cursor
}

func (c *rwCursor) Put(key, value []byte) error {
	if c.t.closed {
		return engine.ErrTxnClosed
	}
	if err := c.table.CheckValueSize(len(value)); err != nil {
		return err
	}
	k := engine.AppendDupKey(append(make([]byte, 0, len(key)+len(value)+2), c.table.ID), key, value)
	c.t.tree.ReplaceOrInsert(item{key: k})
	return nil
}
