package kvbench

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/lotusdblabs/kvbench/engine"
	"github.com/lotusdblabs/kvbench/util"
)

// Layout selects how records are stored.
type Layout int8

const (
	// PlainKV stores one value per key.
	PlainKV Layout = iota
	// DuplicateKey stores every record as a sorted value under one empty key.
	DuplicateKey
)

func (l Layout) String() string {
	switch l {
	case PlainKV:
		return "PlainKV"
	case DuplicateKey:
		return "DuplicateKey"
	}
	return fmt.Sprintf("Layout(%d)", int8(l))
}

func (l Layout) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Layout) UnmarshalText(b []byte) error {
	switch string(b) {
	case "PlainKV":
		*l = PlainKV
	case "DuplicateKey":
		*l = DuplicateKey
	default:
		return errors.Wrapf(engine.ErrUnknownMode, "layout %q", b)
	}
	return nil
}

// TableFlags are the flags both benchmark tables are created with.
func (l Layout) TableFlags() engine.TableFlags {
	if l == DuplicateKey {
		return engine.DupSort | engine.DupFixed
	}
	return 0
}

// StorageConfiguration is one point of the measured matrix.
type StorageConfiguration struct {
	Durability engine.Durability  `json:"durability"`
	Mapping    engine.MappingMode `json:"mapping"`
	Layout     Layout             `json:"layout"`
}

func (c StorageConfiguration) String() string {
	return fmt.Sprintf("%s | %s | %s", c.Layout, c.Durability, c.Mapping)
}

// Instance is a freshly provisioned, open database.
type Instance struct {
	DB     engine.DB
	Path   string
	Config StorageConfiguration
	Small  *engine.Table
	Large  *engine.Table

	closed bool
}

// Close closes the database once, later calls return nil.
func (i *Instance) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	return i.DB.Close()
}

// Size is the on-disk footprint of the instance directory. Sample it after
// Close so buffered data is accounted for.
func (i *Instance) Size() (uint64, error) {
	n, err := util.DirSize(i.Path)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "size of %s", i.Path), ErrFilesystem)
	}
	return uint64(n), nil
}

// Provisioner creates empty instances for one engine.
type Provisioner struct {
	engine engine.Engine
	opts   Options
	log    *zap.Logger
}

func NewProvisioner(e engine.Engine, opts Options, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{engine: e, opts: opts, log: log}
}

// Provision removes whatever lives at path, then opens an empty instance
// with cfg and creates the two benchmark tables.
func (p *Provisioner) Provision(path string, cfg StorageConfiguration) (*Instance, error) {
	if util.PathExist(path) {
		if err := os.RemoveAll(path); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "remove previous instance %s", path), ErrFilesystem)
		}
	}

	geo := p.opts.Geometry
	if err := geo.Validate(); err != nil {
		return nil, errors.Mark(err, ErrProvision)
	}
	if payload := p.opts.PayloadSize(); geo.MaxSize < payload {
		return nil, errors.Mark(errors.Wrapf(engine.ErrInvalidGeometry,
			"max size %s below payload %s", humanize.IBytes(uint64(geo.MaxSize)), humanize.IBytes(uint64(payload))),
			ErrProvision)
	}

	db, err := p.engine.Open(path, engine.Config{
		Durability: cfg.Durability,
		Mapping:    cfg.Mapping,
		MaxTables:  p.opts.MaxTables,
		MaxReaders: p.opts.MaxReaders,
		Geometry:   geo,
		Logger:     p.log,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "open %s instance at %s", p.engine.Name(), path), ErrProvision)
	}

	inst := &Instance{DB: db, Path: path, Config: cfg}
	if err := inst.createTables(p.opts.Small.Name, p.opts.Large.Name); err != nil {
		_ = db.Close()
		return nil, errors.Mark(err, ErrProvision)
	}
	p.log.Debug("instance provisioned",
		zap.String("path", path),
		zap.Stringer("config", cfg),
	)
	return inst, nil
}

func (i *Instance) createTables(small, large string) error {
	tx, err := i.DB.BeginWrite()
	if err != nil {
		return errors.Wrap(err, "begin table creation")
	}
	flags := i.Config.Layout.TableFlags()
	if i.Small, err = tx.CreateTable(small, flags); err != nil {
		tx.Abort()
		return errors.Wrapf(err, "create table %s", small)
	}
	if i.Large, err = tx.CreateTable(large, flags); err != nil {
		tx.Abort()
		return errors.Wrapf(err, "create table %s", large)
	}
	return errors.Wrap(tx.Commit(), "commit table creation")
}
