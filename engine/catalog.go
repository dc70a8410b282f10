package engine

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"
)

// MaxTablesLimit is the most tables a catalog can address with one byte ids.
const MaxTablesLimit = 255

// Table is a handle to a named table of an instance.
type Table struct {
	// ID prefixes every key of the table on backends with a flat keyspace.
	ID    uint8
	Name  string
	Flags TableFlags

	fixed atomic.Int64
}

func (t *Table) IsDupSort() bool { return t.Flags.Has(DupSort) }

// CheckValueSize pins the value size of a DupFixed table to the first value
// it sees and rejects any other size afterwards.
func (t *Table) CheckValueSize(n int) error {
	if !t.Flags.Has(DupFixed) {
		return nil
	}
	if t.fixed.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if fixed := t.fixed.Load(); fixed != int64(n) {
		return errors.Wrapf(ErrValueSize, "table %s holds %d byte values, got %d", t.Name, fixed, n)
	}
	return nil
}

// Catalog tracks the tables and reader slots of one instance. Backends
// embed it so that table limits and reader limits behave the same
// regardless of the storage library underneath.
type Catalog struct {
	mu        sync.RWMutex
	tables    map[string]*Table
	pending   map[string]*Table
	maxTables int
	nextID    int
	readers   *semaphore.Weighted
}

func NewCatalog(maxTables, maxReaders int) *Catalog {
	if maxTables > MaxTablesLimit {
		maxTables = MaxTablesLimit
	}
	return &Catalog{
		tables:    make(map[string]*Table),
		pending:   make(map[string]*Table),
		maxTables: maxTables,
		nextID:    1,
		readers:   semaphore.NewWeighted(int64(maxReaders)),
	}
}

// Reserve allocates a table inside a write transaction. The table becomes
// visible through Table only after Publish.
func (c *Catalog) Reserve(name string, flags TableFlags) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tables[name]; ok {
		return nil, errors.Wrapf(ErrTableExists, "table %s", name)
	}
	if _, ok := c.pending[name]; ok {
		return nil, errors.Wrapf(ErrTableExists, "table %s", name)
	}
	if len(c.tables)+len(c.pending) >= c.maxTables || c.nextID > MaxTablesLimit {
		return nil, errors.Wrapf(ErrTooManyTables, "limit is %d", c.maxTables)
	}
	t := &Table{ID: uint8(c.nextID), Name: name, Flags: flags}
	c.nextID++
	c.pending[name] = t
	return t, nil
}

// Publish makes reserved tables visible, called once their transaction commits.
func (c *Catalog) Publish(tables ...*Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tables {
		delete(c.pending, t.Name)
		c.tables[t.Name] = t
	}
}

// Release drops reservations of an aborted transaction. Ids are not reused.
func (c *Catalog) Release(tables ...*Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tables {
		delete(c.pending, t.Name)
	}
}

func (c *Catalog) Table(name string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, errors.Wrapf(ErrTableNotFound, "table %s", name)
	}
	return t, nil
}

// AcquireReader takes a reader slot without blocking.
func (c *Catalog) AcquireReader() error {
	if !c.readers.TryAcquire(1) {
		return ErrReadersFull
	}
	return nil
}

func (c *Catalog) ReleaseReader() {
	c.readers.Release(1)
}
