// Package engine defines the narrow transactional key-value contract the
// benchmark drives. Backends live in sub packages and translate the
// durability and mapping axes into their own options.
package engine

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Durability controls how aggressively a commit is flushed to stable media.
type Durability int8

const (
	// Durable flushes every commit before acknowledging it.
	Durable Durability = iota
	// SafeNoSync skips the flush on commit but keeps the instance consistent.
	SafeNoSync
	// UtterlyNoSync skips every flush, a crash may lose or corrupt data.
	UtterlyNoSync
)

func (d Durability) String() string {
	switch d {
	case Durable:
		return "Durable"
	case SafeNoSync:
		return "SafeNoSync"
	case UtterlyNoSync:
		return "UtterlyNoSync"
	}
	return fmt.Sprintf("Durability(%d)", int8(d))
}

// MappingMode selects whether the engine reaches its backing file through a
// memory-mapped region or through explicit read/write calls.
type MappingMode int8

const (
	MemoryMapped MappingMode = iota
	Unmapped
)

func (m MappingMode) String() string {
	switch m {
	case MemoryMapped:
		return "MemoryMapped"
	case Unmapped:
		return "Unmapped"
	}
	return fmt.Sprintf("MappingMode(%d)", int8(m))
}

// TableFlags selects the layout of a table.
type TableFlags uint8

const (
	// DupSort stores many values per key, sorted by value content and
	// deduplicated by full value.
	DupSort TableFlags = 1 << iota
	// DupFixed requires every value of a DupSort table to share one size.
	DupFixed
)

func (f TableFlags) Has(flag TableFlags) bool { return f&flag == flag }

const (
	MinMaxTables  = 14
	MinMaxReaders = 32

	KiB int64 = 1 << 10
	MiB int64 = 1 << 20
	GiB int64 = 1 << 30
	TiB int64 = 1 << 40
)

// Geometry bounds the size of an instance.
type Geometry struct {
	// MaxSize is the addressable ceiling of the instance.
	MaxSize int64 `yaml:"max_size" json:"max_size"`
	// GrowthStep is the increment the backing storage grows by.
	GrowthStep int64 `yaml:"growth_step" json:"growth_step"`
}

// DefaultGeometry tolerates a 4 TiB map and grows by 256 MiB per extension.
var DefaultGeometry = Geometry{MaxSize: 4 * TiB, GrowthStep: 256 * MiB}

// Validate checks the geometry bounds.
func (g Geometry) Validate() error {
	if g.GrowthStep < MiB {
		return errors.Wrapf(ErrInvalidGeometry, "growth step %d below 1 MiB", g.GrowthStep)
	}
	if g.MaxSize < g.GrowthStep {
		return errors.Wrapf(ErrInvalidGeometry, "max size %d below growth step %d", g.MaxSize, g.GrowthStep)
	}
	return nil
}

// Config is what a backend needs to open an instance.
type Config struct {
	Durability Durability
	Mapping    MappingMode
	MaxTables  int
	MaxReaders int
	Geometry   Geometry
	Logger     *zap.Logger
}

func (c Config) Validate() error {
	if c.MaxTables < MinMaxTables {
		return errors.Wrapf(ErrInvalidGeometry, "max tables %d, need at least %d", c.MaxTables, MinMaxTables)
	}
	if c.MaxTables > MaxTablesLimit {
		return errors.Wrapf(ErrInvalidGeometry, "max tables %d, at most %d", c.MaxTables, MaxTablesLimit)
	}
	if c.MaxReaders < MinMaxReaders {
		return errors.Wrapf(ErrInvalidGeometry, "max readers %d, need at least %d", c.MaxReaders, MinMaxReaders)
	}
	return c.Geometry.Validate()
}

// Engine opens instances rooted at a directory.
type Engine interface {
	Name() string
	Open(path string, cfg Config) (DB, error)
}

// DB is an open instance.
type DB interface {
	// BeginWrite starts the single read-write transaction.
	BeginWrite() (RWTxn, error)
	// BeginRead starts a read-only transaction, it takes one reader slot.
	BeginRead() (Txn, error)
	// Table returns a table created by a committed transaction.
	Table(name string) (*Table, error)
	Close() error
}

// Txn is a read-only transaction. Returned slices are only valid until the
// transaction ends.
type Txn interface {
	// Get returns the value of key, ok is false on a miss.
	Get(t *Table, key []byte) (value []byte, ok bool, err error)
	Cursor(t *Table) (Cursor, error)
	// Discard ends the transaction, it is safe to call more than once.
	Discard()
}

// RWTxn is a read-write transaction.
type RWTxn interface {
	Txn
	CreateTable(name string, flags TableFlags) (*Table, error)
	// Put upserts key into a plain table.
	Put(t *Table, key, value []byte) error
	RWCursor(t *Table) (RWCursor, error)
	Commit() error
	// Abort rolls the transaction back, it is a no-op after Commit.
	Abort()
}

// Cursor reads a DupSort table.
type Cursor interface {
	// GetBoth positions on the first value stored under key that starts
	// with prefix.
	GetBoth(key, prefix []byte) (value []byte, ok bool, err error)
	Close()
}

// RWCursor also inserts into a DupSort table.
type RWCursor interface {
	Cursor
	Put(key, value []byte) error
}
