package boltdb

import (
	"github.com/cockroachdb/errors"
	"go.etcd.io/bbolt"

	"github.com/lotusdblabs/kvbench/engine"
)

type txn struct {
	tx      *bbolt.Tx
	buckets map[uint8]*bbolt.Bucket
	release func()
	closed  bool
}

func (t *txn) bucket(tb *engine.Table) (*bbolt.Bucket, error) {
	if t.closed {
		return nil, engine.ErrTxnClosed
	}
	if b, ok := t.buckets[tb.ID]; ok {
		return b, nil
	}
	b := t.tx.Bucket([]byte(tb.Name))
	if b == nil {
		return nil, errors.Wrapf(engine.ErrTableNotFound, "bucket %s", tb.Name)
	}
	t.buckets[tb.ID] = b
	return b, nil
}

func (t *txn) Get(tb *engine.Table, key []byte) ([]byte, bool, error) {
	if tb.IsDupSort() {
		return nil, false, engine.ErrDupSort
	}
	b, err := t.bucket(tb)
	if err != nil {
		return nil, false, err
	}
	v := b.Get(key)
	return v, v != nil, nil
}

func (t *txn) Cursor(tb *engine.Table) (engine.Cursor, error) {
	if !tb.IsDupSort() {
		return nil, engine.ErrNotDupSort
	}
	b, err := t.bucket(tb)
	if err != nil {
		return nil, err
	}
	return &cursor{bucket: b, c: b.Cursor()}, nil
}

func (t *txn) Discard() {
	if t.closed {
		return
	}
	t.closed = true
	_ = t.tx.Rollback()
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
	b, err := t.tx.CreateBucket([]byte(name))
	if err != nil {
		t.db.Release(tb)
		if errors.Is(err, bbolt.ErrBucketExists) {
			return nil, errors.Wrapf(engine.ErrTableExists, "bucket %s", name)
		}
		return nil, errors.Wrapf(err, "create bucket %s", name)
	}
	t.buckets[tb.ID] = b
	t.created = append(t.created, tb)
	return tb, nil
}

func (t *rwTxn) Put(tb *engine.Table, key, value []byte) error {
	if tb.IsDupSort() {
		return engine.ErrDupSort
	}
	if len(key) == 0 {
		return engine.ErrKeyIsEmpty
	}
	b, err := t.bucket(tb)
	if err != nil {
		return err
	}
	return b.Put(key, value)
}

func (t *rwTxn) RWCursor(tb *engine.Table) (engine.RWCursor, error) {
	if !tb.IsDupSort() {
		return nil, engine.ErrNotDupSort
	}
	b, err := t.bucket(tb)
	if err != nil {
		return nil, err
	}
	return &rwCursor{cursor: cursor{bucket: b}, table: tb}, nil
}

func (t *rwTxn) Commit() error {
	if t.closed {
		return engine.ErrTxnClosed
	}
	t.closed = true
	if err := t.tx.Commit(); err != nil {
		t.db.Release(t.created...)
		return errors.Wrap(err, "commit bolt txn")
	}
	t.db.Publish(t.created...)
	return nil
}

func (t *rwTxn) Abort() {
	if t.closed {
		return
	}
	t.closed = true
	_ = t.tx.Rollback()
	t.db.Release(t.created...)
}

// cursor stores every value of a dup sort table as its own bolt key, see
// engine.AppendDupKey, and keeps the bolt value empty.
type cursor struct {
	bucket *bbolt.Bucket
	c      *bbolt.Cursor
	seek   []byte
}

func (c *cursor) GetBoth(key, prefix []byte) ([]byte, bool, error) {
	c.seek = engine.AppendDupKey(c.seek[:0], key, prefix)
	bc := c.c
	if bc == nil {
		// a writable bucket may have moved under a previous cursor
		bc = c.bucket.Cursor()
	}
	k, _ := bc.Seek(c.seek)
	return engine.MatchDup(k, c.seek)
}

func (c *cursor) Close() {}

type rwCursor struct {
	cursor
	table *engine.Table
}

var emptyValue = []byte{}

func (c *rwCursor) Put(key, value []byte) error {
	if err := c.table.CheckValueSize(len(value)); err != nil {
		return err
	}
	// bolt keeps a reference to the key until the txn ends
	return c.bucket.Put(engine.AppendDupKey(nil, key, value), emptyValue)
}
