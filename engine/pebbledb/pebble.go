// Package pebbledb runs the benchmark against pebble, the LSM tree used by
// CockroachDB.
package pebbledb

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/lotusdblabs/kvbench/engine"
)

const EngineName = "pebble"

type Engine struct{}

func New() Engine { return Engine{} }

func (Engine) Name() string { return EngineName }

// Open opens the instance rooted at path.
//
// Durable syncs the WAL on every commit, SafeNoSync writes the WAL without
// syncing it and UtterlyNoSync disables the WAL. The memtable is sized to
// the geometry growth step. Pebble reads through explicit file reads so
// MemoryMapped only produces a warning.
func (Engine) Open(path string, cfg engine.Config) (engine.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Mapping == engine.MemoryMapped {
		log.Warn("pebble does not map its files, mapping mode ignored", zap.String("path", path))
	}

	opts := &pebble.Options{
		DisableWAL:   cfg.Durability == engine.UtterlyNoSync,
		MemTableSize: uint64(cfg.Geometry.GrowthStep),
		Logger:       &logger{s: log.Named(EngineName).Sugar()},
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble instance %s", path)
	}

	wo := pebble.Sync
	if cfg.Durability != engine.Durable {
		wo = pebble.NoSync
	}
	return &DB{
		Catalog:    engine.NewCatalog(cfg.MaxTables, cfg.MaxReaders),
		db:         db,
		writeOpts:  wo,
		disableWAL: opts.DisableWAL,
	}, nil
}

// DB is an open pebble instance.
type DB struct {
	*engine.Catalog
	db         *pebble.DB
	writeOpts  *pebble.WriteOptions
	disableWAL bool
	// writer admits one batch at a time
	writer sync.Mutex
}

func (d *DB) BeginWrite() (engine.RWTxn, error) {
	d.writer.Lock()
	b := d.db.NewIndexedBatch()
	return &rwTxn{txn: txn{r: b}, db: d, batch: b}, nil
}

func (d *DB) BeginRead() (engine.Txn, error) {
	if err := d.AcquireReader(); err != nil {
		return nil, err
	}
	snap := d.db.NewSnapshot()
	return &txn{r: snap, snap: snap, release: d.ReleaseReader}, nil
}

// Close flushes the memtable first when the WAL is off, otherwise the data
// would never reach disk.
func (d *DB) Close() error {
	if d.disableWAL {
		if err := d.db.Flush(); err != nil {
			return errors.Wrap(err, "flush pebble memtable")
		}
	}
	return d.db.Close()
}

// logger routes pebble logs into zap, info lines are demoted to debug.
type logger struct {
	s *zap.SugaredLogger
}

func (l *logger) Infof(format string, args ...interface{})  { l.s.Debugf(format, args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }
func (l *logger) Fatalf(format string, args ...interface{}) { l.s.Fatalf(format, args...) }
