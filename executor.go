package kvbench

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lotusdblabs/kvbench/engine"
)

// dupKey is the single outer key every duplicate record is stored under.
var dupKey = []byte{}

// Executor runs batched transactional passes over a workload. Each batch is
// its own transaction, a trailing partial batch is not executed.
type Executor struct {
	batchSize int
	progress  Progress
	log       *zap.Logger
}

func NewExecutor(batchSize int, progress Progress, log *zap.Logger) *Executor {
	if progress == nil {
		progress = NopProgress{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{batchSize: batchSize, progress: progress, log: log}
}

// WritePlain upserts every record into t, one write transaction per batch.
func (e *Executor) WritePlain(ctx context.Context, db engine.DB, t *engine.Table, w *Workload) (PhaseTiming, error) {
	return e.run(ctx, t, OpWrite, w.Len(), func(lo, hi int) (int, error) {
		tx, err := db.BeginWrite()
		if err != nil {
			return 0, err
		}
		for i := lo; i < hi; i++ {
			if err := tx.Put(t, w.Key(i), w.Value(i)); err != nil {
				tx.Abort()
				return 0, err
			}
		}
		return 0, tx.Commit()
	})
}

// ReadPlain looks every record of reads up in t, one read transaction per
// batch. A missing key is counted, not fatal.
func (e *Executor) ReadPlain(ctx context.Context, db engine.DB, t *engine.Table, reads *Workload) (PhaseTiming, error) {
	return e.run(ctx, t, OpRead, reads.Len(), func(lo, hi int) (int, error) {
		tx, err := db.BeginRead()
		if err != nil {
			return 0, err
		}
		defer tx.Discard()
		misses := 0
		for i := lo; i < hi; i++ {
			_, ok, err := tx.Get(t, reads.Key(i))
			if err != nil {
				return misses, err
			}
			if !ok {
				misses++
			}
		}
		return misses, nil
	})
}

// WriteDup inserts every blob under the empty outer key through a cursor.
func (e *Executor) WriteDup(ctx context.Context, db engine.DB, t *engine.Table, w *Workload) (PhaseTiming, error) {
	return e.run(ctx, t, OpWrite, w.Len(), func(lo, hi int) (int, error) {
		tx, err := db.BeginWrite()
		if err != nil {
			return 0, err
		}
		c, err := tx.RWCursor(t)
		if err != nil {
			tx.Abort()
			return 0, err
		}
		for i := lo; i < hi; i++ {
			if err := c.Put(dupKey, w.Blob(i)); err != nil {
				c.Close()
				tx.Abort()
				return 0, err
			}
		}
		c.Close()
		return 0, tx.Commit()
	})
}

// ReadDup positions a cursor on every record of reads by its key prefix.
func (e *Executor) ReadDup(ctx context.Context, db engine.DB, t *engine.Table, reads *Workload) (PhaseTiming, error) {
	return e.run(ctx, t, OpRead, reads.Len(), func(lo, hi int) (int, error) {
		tx, err := db.BeginRead()
		if err != nil {
			return 0, err
		}
		defer tx.Discard()
		c, err := tx.Cursor(t)
		if err != nil {
			return 0, err
		}
		defer c.Close()
		misses := 0
		for i := lo; i < hi; i++ {
			_, ok, err := c.GetBoth(dupKey, reads.Key(i))
			if err != nil {
				return misses, err
			}
			if !ok {
				misses++
			}
		}
		return misses, nil
	})
}

// Batches splits n records into full batches and the dropped remainder.
func (e *Executor) Batches(n int) (batches, dropped int) {
	return n / e.batchSize, n % e.batchSize
}

func (e *Executor) run(ctx context.Context, t *engine.Table, op Op, n int, batch func(lo, hi int) (int, error)) (PhaseTiming, error) {
	batches, dropped := e.Batches(n)
	phase := PhaseTiming{Table: t.Name, Op: op, Dropped: dropped}
	if dropped > 0 {
		e.log.Warn("records do not fill the last batch, dropping them",
			zap.String("table", t.Name),
			zap.String("op", string(op)),
			zap.Int("dropped", dropped),
			zap.Int("batch_size", e.batchSize),
		)
	}

	start := time.Now()
	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return phase, err
		}
		lo := b * e.batchSize
		misses, err := batch(lo, lo+e.batchSize)
		phase.Misses += misses
		if err != nil {
			return phase, errors.Mark(errors.Wrapf(err, "%s %s batch %d", op, t.Name, b), ErrTransaction)
		}
		phase.Batches++
		phase.Ops += e.batchSize
		e.progress.Add(int64(e.batchSize))
	}
	phase.Seconds = time.Since(start).Seconds()
	return phase, nil
}
