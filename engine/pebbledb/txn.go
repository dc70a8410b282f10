package pebbledb

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/lotusdblabs/kvbench/engine"
)

// reader is what snapshots and indexed batches have in common.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

type txn struct {
	r       reader
	snap    *pebble.Snapshot
	release func()
	key     []byte
	closed  bool
}

func (t *txn) Get(tb *engine.Table, key []byte) ([]byte, bool, error) {
	if t.closed {
		return nil, false, engine.ErrTxnClosed
	}
	if tb.IsDupSort() {
		return nil, false, engine.ErrDupSort
	}
	t.key = engine.AppendTableKey(t.key[:0], tb, key)
	v, closer, err := t.r.Get(t.key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "pebble get")
	}
	out := append([]byte(nil), v...)
	if err := closer.Close(); err != nil {
		return nil, false, errors.Wrap(err, "pebble release value")
	}
	return out, true, nil
}

func (t *txn) Cursor(tb *engine.Table) (engine.Cursor, error) {
	if t.closed {
		return nil, engine.ErrTxnClosed
	}
	if !tb.IsDupSort() {
		return nil, engine.ErrNotDupSort
	}
	return &cursor{r: t.r, table: tb, persistent: t.snap != nil}, nil
}

func (t *txn) Discard() {
	if t.closed {
		return
	}
	t.closed = true
	if t.snap != nil {
		_ = t.snap.Close()
	}
	if t.release != nil {
		t.release()
	}
}

type rwTxn struct {
	txn
	db      *DB
	batch   *pebble.Batch
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
	// the batch copies key and value, the buffer can be reused
	t.key = engine.AppendTableKey(t.key[:0], tb, key)
	return errors.Wrap(t.batch.Set(t.key, value, nil), "pebble set")
}

func (t *rwTxn) RWCursor(tb *engine.Table) (engine.RWCursor, error) {
	if t.closed {
		return nil, engine.ErrTxnClosed
	}
	if !tb.IsDupSort() {
		return nil, engine.ErrNotDupSort
	}
	return &rwCursor{cursor: cursor{r: t.batch, table: tb}, batch: t.batch}, nil
}

func (t *rwTxn) Commit() error {
	if t.closed {
		return engine.ErrTxnClosed
	}
	t.closed = true
	defer t.db.writer.Unlock()
	defer t.batch.Close()
	if err := t.batch.Commit(t.db.writeOpts); err != nil {
		t.db.Release(t.created...)
		return errors.Wrap(err, "commit pebble batch")
	}
	t.db.Publish(t.created...)
	return nil
}

func (t *rwTxn) Abort() {
	if t.closed {
		return
	}
	t.closed = true
	_ = t.batch.Close()
	t.db.Release(t.created...)
	t.db.writer.Unlock()
}

type cursor struct {
	r     reader
	table *engine.Table
	it    *pebble.Iterator
	// persistent cursors keep one iterator over an immutable snapshot,
	// batch iterators are rebuilt so they see the latest writes
	persistent bool
	seek       []byte
}

func (c *cursor) iterOptions() *pebble.IterOptions {
	opts := &pebble.IterOptions{LowerBound: []byte{c.table.ID}}
	if c.table.ID < engine.MaxTablesLimit {
		opts.UpperBound = []byte{c.table.ID + 1}
	}
	return opts
}

func (c *cursor) GetBoth(key, prefix []byte) ([]byte, bool, error) {
	c.seek = engine.AppendDupKey(append(c.seek[:0], c.table.ID), key, prefix)

	it := c.it
	if it == nil {
		var err error
		it, err = c.r.NewIter(c.iterOptions())
		if err != nil {
			return nil, false, errors.Wrap(err, "pebble iterator")
		}
		if c.persistent {
			c.it = it
		} else {
			defer it.Close()
		}
	}

	if !it.SeekGE(c.seek) {
		return nil, false, nil
	}
	found := append([]byte(nil), it.Key()...)
	return engine.MatchTableDup(found, c.seek)
}

func (c *cursor) Close() {
	if c.it != nil {
		_ = c.it.Close()
		c.it = nil
	}
}

type rwCursor struct {
	cursor
	batch *pebble.Batch
}

func (c *rwCursor) Put(key, value []byte) error {
	if err := c.table.CheckValueSize(len(value)); err != nil {
		return err
	}
	c.seek = engine.AppendDupKey(append(c.seek[:0], c.table.ID), key, value)
	return errors.Wrap(c.batch.Set(c.seek, nil, nil), "pebble set")
}
