package kvbench

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Progress receives the number of operations completed.
type Progress interface {
	Add(n int64)
}

// NopProgress discards progress.
type NopProgress struct{}

func (NopProgress) Add(int64) {}

// Tracker counts completed operations of one iteration and logs the position,
// rate and estimated time left at a fixed interval.
type Tracker struct {
	label     string
	iteration int
	total     int64
	pos       atomic.Int64
	start     time.Time
	log       *zap.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartTracker begins tracking. With a non-positive interval only the final
// line is logged.
func StartTracker(log *zap.Logger, label string, iteration int, total int64, interval time.Duration) *Tracker {
	t := &Tracker{
		label:     label,
		iteration: iteration,
		total:     total,
		start:     time.Now(),
		log:       log,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if interval <= 0 {
		close(t.done)
		return t
	}
	go t.loop(interval)
	return t
}

func (t *Tracker) loop(interval time.Duration) {
	defer close(t.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.report("benchmark progress")
		case <-t.stop:
			return
		}
	}
}

func (t *Tracker) Add(n int64) { t.pos.Add(n) }

// Pos is the number of operations counted so far.
func (t *Tracker) Pos() int64 { return t.pos.Load() }

// Finish stops the ticker and logs the final position. It is safe to call
// more than once.
func (t *Tracker) Finish() {
	t.stopOnce.Do(func() {
		close(t.stop)
		<-t.done
		t.report("benchmark iteration finished")
	})
}

func (t *Tracker) report(msg string) {
	pos := t.pos.Load()
	elapsed := time.Since(t.start)
	var rate float64
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(pos) / secs
	}
	var eta time.Duration
	if rate > 0 && pos < t.total {
		eta = time.Duration(float64(t.total-pos) / rate * float64(time.Second))
	}
	t.log.Info(msg,
		zap.String("case", t.label),
		zap.Int("iteration", t.iteration),
		zap.Int64("pos", pos),
		zap.Int64("total", t.total),
		zap.Float64("ops_per_sec", rate),
		zap.Duration("elapsed", elapsed),
		zap.Duration("eta", eta),
	)
}
