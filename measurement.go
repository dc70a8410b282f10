package kvbench

import "github.com/cockroachdb/errors"

// Op is the kind of a timed phase.
type Op string

const (
	OpWrite Op = "write"
	OpRead  Op = "read"
)

// PhaseTiming is one timed pass over one table.
type PhaseTiming struct {
	Table   string  `json:"table"`
	Op      Op      `json:"op"`
	Seconds float64 `json:"seconds"`
	Batches int     `json:"batches"`
	Ops     int     `json:"ops"`
	// Misses counts lookups that found nothing.
	Misses int `json:"misses,omitempty"`
	// Dropped counts trailing records that did not fill a batch.
	Dropped int `json:"dropped,omitempty"`
	// Discarded phases prepared the instance and are not part of Durations.
	Discarded bool `json:"discarded,omitempty"`
}

// OpsPerSecond is the throughput of the phase.
func (p PhaseTiming) OpsPerSecond() float64 {
	if p.Seconds <= 0 {
		return 0
	}
	return float64(p.Ops) / p.Seconds
}

// MeasurementRecord is the outcome of one iteration of one case. Plain
// layouts store the large table phase first and the small table phase
// second, the dup layout stores zero then the dup phase.
type MeasurementRecord struct {
	Durations [2]float64    `json:"durations"`
	Size      uint64        `json:"size"`
	Phases    []PhaseTiming `json:"phases"`
}

// Collector gathers the phases of one iteration.
type Collector struct {
	layout Layout
	phases []PhaseTiming
	// kept indexes phases that count towards Durations.
	kept   []int
	sealed bool
}

func NewCollector(layout Layout) *Collector {
	return &Collector{layout: layout}
}

func (c *Collector) Add(p PhaseTiming) {
	c.kept = append(c.kept, len(c.phases))
	c.phases = append(c.phases, p)
}

// Discard marks every phase collected so far as preparation.
func (c *Collector) Discard() {
	for _, i := range c.kept {
		c.phases[i].Discarded = true
	}
	c.kept = c.kept[:0]
}

// Seal turns the collected phases into a record. A collector seals once.
func (c *Collector) Seal(size uint64) (MeasurementRecord, error) {
	if c.sealed {
		return MeasurementRecord{}, errors.Wrap(ErrMeasurement, "collector already sealed")
	}
	want := 2
	if c.layout == DuplicateKey {
		want = 1
	}
	if len(c.kept) != want {
		return MeasurementRecord{}, errors.Wrapf(ErrMeasurement, "%s layout needs %d timed phases, got %d",
			c.layout, want, len(c.kept))
	}
	c.sealed = true

	rec := MeasurementRecord{Size: size, Phases: c.phases}
	if c.layout == DuplicateKey {
		rec.Durations[1] = c.phases[c.kept[0]].Seconds
	} else {
		rec.Durations[0] = c.phases[c.kept[0]].Seconds
		rec.Durations[1] = c.phases[c.kept[1]].Seconds
	}
	return rec, nil
}
