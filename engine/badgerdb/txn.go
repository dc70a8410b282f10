package badgerdb

import (
	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"

	"github.com/lotusdblabs/kvbench/engine"
)

type txn struct {
	tx      *badger.Txn
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
	item, err := t.tx.Get(t.key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "badger get")
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "badger read value")
	}
	return v, true, nil
}

func (t *txn) Cursor(tb *engine.Table) (engine.Cursor, error) {
	if t.closed {
		return nil, engine.ErrTxnClosed
	}
	if !tb.IsDupSort() {
		return nil, engine.ErrNotDupSort
	}
	return &cursor{tx: t.tx, table: tb}, nil
}

func (t *txn) Discard() {
	if t.closed {
		return
	}
	t.closed = true
	t.tx.Discard()
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
	// badger holds on to key and value until the txn ends
	return wrapSet(t.tx.Set(engine.AppendTableKey(nil, tb, key), value))
}

func (t *rwTxn) RWCursor(tb *engine.Table) (engine.RWCursor, error) {
	if t.closed {
		return nil, engine.ErrTxnClosed
	}
	if !tb.IsDupSort() {
		return nil, engine.ErrNotDupSort
	}
	return &rwCursor{cursor: cursor{tx: t.tx, table: tb, writable: true}}, nil
}

func (t *rwTxn) Commit() error {
	if t.closed {
		return engine.ErrTxnClosed
	}
	t.closed = true
	defer t.db.writer.Unlock()
	if err := t.tx.Commit(); err != nil {
		t.db.Release(t.created...)
		return errors.Wrap(err, "commit badger txn")
	}
	t.db.Publish(t.created...)
	return nil
}

func (t *rwTxn) Abort() {
	if t.closed {
		return
	}
	t.closed = true
	t.tx.Discard()
	t.db.Release(t.created...)
	t.db.writer.Unlock()
}

func wrapSet(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrTxnTooBig) {
		return errors.Wrap(err, "badger txn too big, lower the commit batch size")
	}
	return errors.Wrap(err, "badger set")
}

type cursor struct {
	tx       *badger.Txn
	table    *engine.Table
	it       *badger.Iterator
	writable bool
	seek     []byte
}

func (c *cursor) iterator() *badger.Iterator {
	return c.tx.NewIterator(badger.IteratorOptions{
		PrefetchValues: false,
		Prefix:         []byte{c.table.ID},
	})
}

func (c *cursor) GetBoth(key, prefix []byte) ([]byte, bool, error) {
	c.seek = engine.AppendDupKey(append(c.seek[:0], c.table.ID), key, prefix)

	it := c.it
	if c.writable {
		// a read-write txn allows one iterator at a time and the iterator
		// only sees writes made before it was created
		it = c.iterator()
		defer it.Close()
	} else if it == nil {
		c.it = c.iterator()
		it = c.it
	}

	it.Seek(c.seek)
	if !it.Valid() {
		return nil, false, nil
	}
	found := it.Item().KeyCopy(nil)
	return engine.MatchTableDup(found, c.seek)
}

func (c *cursor) Close() {
	if c.it != nil {
		c.it.Close()
		c.it = nil
	}
}

type rwCursor struct {
	cursor
}

var emptyValue = []byte{}

func (c *rwCursor) Put(key, value []byte) error {
	if err := c.table.CheckValueSize(len(value)); err != nil {
		return err
	}
	k := engine.AppendDupKey(append(make([]byte, 0, len(key)+len(value)+2), c.table.ID), key, value)
	return wrapSet(c.tx.Set(k, emptyValue))
}
