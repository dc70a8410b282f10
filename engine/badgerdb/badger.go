// Package badgerdb runs the benchmark against badger, an LSM tree with a
// separate value log.
package badgerdb

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/lotusdblabs/kvbench/engine"
)

const (
	EngineName = "badger"

	// values above the threshold go to the value log, which keeps large
	// profile batches far below the transaction size limit
	valueThreshold = 1 << 10

	minValueLogFileSize = 1 << 20
	maxValueLogFileSize = 2<<30 - 1
)

type Engine struct{}

func New() Engine { return Engine{} }

func (Engine) Name() string { return EngineName }

// Open opens the instance rooted at path.
//
// Durable turns on SyncWrites. SafeNoSync and UtterlyNoSync both leave it
// off, badger has no weaker level. The value log rotates at the geometry
// growth step. Badger always maps its tables so the mapping mode only
// produces a warning when Unmapped is asked for.
func (Engine) Open(path string, cfg engine.Config) (engine.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Mapping == engine.Unmapped {
		log.Warn("badger cannot run unmapped, mapping mode ignored", zap.String("path", path))
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(cfg.Durability == engine.Durable).
		WithLogger(&logger{s: log.Named(EngineName).Sugar()}).
		WithValueLogFileSize(clamp(cfg.Geometry.GrowthStep, minValueLogFileSize, maxValueLogFileSize)).
		WithValueThreshold(valueThreshold).
		WithNumVersionsToKeep(1).
		WithDetectConflicts(false)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open badger instance %s", path)
	}
	return &DB{
		Catalog: engine.NewCatalog(cfg.MaxTables, cfg.MaxReaders),
		db:      db,
	}, nil
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DB is an open badger instance.
type DB struct {
	*engine.Catalog
	db *badger.DB
	// writer admits one read-write transaction at a time
	writer sync.Mutex
}

func (d *DB) BeginWrite() (engine.RWTxn, error) {
	d.writer.Lock()
	return &rwTxn{txn: txn{tx: d.db.NewTransaction(true)}, db: d}, nil
}

func (d *DB) BeginRead() (engine.Txn, error) {
	if err := d.AcquireReader(); err != nil {
		return nil, err
	}
	return &txn{tx: d.db.NewTransaction(false), release: d.ReleaseReader}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// logger routes badger logs into zap, badger info lines are demoted to debug.
type logger struct {
	s *zap.SugaredLogger
}

func trim(format string, args ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}

func (l *logger) Errorf(format string, args ...interface{})   { l.s.Error(trim(format, args...)) }
func (l *logger) Warningf(format string, args ...interface{}) { l.s.Warn(trim(format, args...)) }
func (l *logger) Infof(format string, args ...interface{})    { l.s.Debug(trim(format, args...)) }
func (l *logger) Debugf(format string, args ...interface{})   { l.s.Debug(trim(format, args...)) }
