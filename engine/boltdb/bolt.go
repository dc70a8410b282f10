// Package boltdb runs the benchmark against bbolt, a copy-on-write B+tree
// that reads through a memory map and writes through pwrite.
package boltdb

import (
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/lotusdblabs/kvbench/engine"
)

const (
	EngineName   = "bolt"
	DataFileName = "data.bolt"

	openTimeout = time.Second
)

type Engine struct{}

func New() Engine { return Engine{} }

func (Engine) Name() string { return EngineName }

// Open creates or opens the instance rooted at path.
//
// Durable keeps every fsync. SafeNoSync skips the fsync of each commit and
// syncs once on Close. UtterlyNoSync also skips freelist and growth syncs.
// MemoryMapped maps the whole geometry ceiling up front so the instance is
// never remapped, Unmapped lets bbolt map lazily and remap on every growth.
func (Engine) Open(path string, cfg engine.Config) (engine.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "create instance directory %s", path)
	}

	opts := &bbolt.Options{
		Timeout:      openTimeout,
		FreelistType: bbolt.FreelistMapType,
	}
	switch cfg.Durability {
	case engine.SafeNoSync:
		opts.NoSync = true
	case engine.UtterlyNoSync:
		opts.NoSync = true
		opts.NoGrowSync = true
		opts.NoFreelistSync = true
	}
	if cfg.Mapping == engine.MemoryMapped {
		opts.InitialMmapSize = clampInt(cfg.Geometry.MaxSize)
	} else {
		log.Warn("bolt always maps its file, Unmapped only maps lazily and remaps on growth",
			zap.String("path", path))
	}

	db, err := bbolt.Open(filepath.Join(path, DataFileName), 0600, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt instance %s", path)
	}
	db.AllocSize = clampInt(cfg.Geometry.GrowthStep)

	log.Debug("bolt instance opened",
		zap.String("path", path),
		zap.Stringer("durability", cfg.Durability),
		zap.Stringer("mapping", cfg.Mapping),
		zap.Int("initial_mmap", opts.InitialMmapSize),
		zap.Int("alloc_size", db.AllocSize))

	return &DB{
		Catalog: engine.NewCatalog(cfg.MaxTables, cfg.MaxReaders),
		db:      db,
		cfg:     cfg,
	}, nil
}

func clampInt(v int64) int {
	if v > math.MaxInt {
		return math.MaxInt
	}
	return int(v)
}

// DB is an open bolt instance.
type DB struct {
	*engine.Catalog
	db  *bbolt.DB
	cfg engine.Config
}

func (d *DB) BeginWrite() (engine.RWTxn, error) {
	tx, err := d.db.Begin(true)
	if err != nil {
		return nil, errors.Wrap(err, "begin bolt write txn")
	}
	return &rwTxn{txn: txn{tx: tx, buckets: make(map[uint8]*bbolt.Bucket)}, db: d}, nil
}

func (d *DB) BeginRead() (engine.Txn, error) {
	if err := d.AcquireReader(); err != nil {
		return nil, err
	}
	tx, err := d.db.Begin(false)
	if err != nil {
		d.ReleaseReader()
		return nil, errors.Wrap(err, "begin bolt read txn")
	}
	return &txn{tx: tx, buckets: make(map[uint8]*bbolt.Bucket), release: d.ReleaseReader}, nil
}

func (d *DB) Close() error {
	if d.cfg.Durability == engine.SafeNoSync {
		if err := d.db.Sync(); err != nil {
			return errors.Wrap(err, "sync bolt instance")
		}
	}
	return d.db.Close()
}
