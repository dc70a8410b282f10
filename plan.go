package kvbench

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/lotusdblabs/kvbench/engine"
)

// CaseKind tells what an iteration of a case measures.
type CaseKind int8

const (
	// WriteCase times the writes.
	WriteCase CaseKind = iota
	// ReadCase writes untimed, then times point reads in shuffled order.
	ReadCase
)

func (k CaseKind) String() string {
	if k == ReadCase {
		return "read"
	}
	return "write"
}

func (k CaseKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *CaseKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "read":
		*k = ReadCase
	case "write":
		*k = WriteCase
	default:
		return errors.Wrapf(engine.ErrUnknownMode, "case kind %q", b)
	}
	return nil
}

// Case is one configuration of the matrix.
type Case struct {
	Label     string
	Kind      CaseKind
	Config    StorageConfiguration
	BatchSize int
}

// Suite is a named group of cases sharing a layout.
type Suite struct {
	Key    string
	Name   string
	Layout Layout
	Cases  []Case
}

const (
	PlainSuiteName = "Plain Key/Value"
	DupSuiteName   = "Duplicate Key w/ Cursors"
)

// Plan enumerates the suites and cases opts selects, in run order.
func Plan(opts Options) []Suite {
	suites := []Suite{
		{Key: SuitePlain, Name: PlainSuiteName, Layout: PlainKV},
		{Key: SuiteDup, Name: DupSuiteName, Layout: DuplicateKey},
	}
	planned := suites[:0]
	for _, s := range suites {
		if !opts.RunsSuite(s.Key) {
			continue
		}
		s.Cases = planCases(s.Layout, opts)
		planned = append(planned, s)
	}
	return planned
}

func planCases(layout Layout, opts Options) []Case {
	prefix := "KV"
	if layout == DuplicateKey {
		prefix = "DupKey"
	}
	var cases []Case
	write := func(d engine.Durability, m engine.MappingMode, batch int) {
		label := fmt.Sprintf("%s %s | %s", prefix, d, m)
		if batch != opts.BatchSize {
			label = fmt.Sprintf("%s | B%d", label, batch)
		}
		cases = append(cases, Case{
			Label:     label,
			Kind:      WriteCase,
			Config:    StorageConfiguration{Durability: d, Mapping: m, Layout: layout},
			BatchSize: batch,
		})
	}
	for _, d := range []engine.Durability{engine.Durable, engine.SafeNoSync} {
		for _, m := range []engine.MappingMode{engine.MemoryMapped, engine.Unmapped} {
			write(d, m, opts.BatchSize)
		}
	}
	if opts.Extended {
		write(engine.Durable, engine.MemoryMapped, opts.ExtendedBatchSize)
		write(engine.SafeNoSync, engine.MemoryMapped, opts.ExtendedBatchSize)
	}
	for _, m := range []engine.MappingMode{engine.MemoryMapped, engine.Unmapped} {
		cases = append(cases, Case{
			Label:     fmt.Sprintf("%s Read | %s", prefix, m),
			Kind:      ReadCase,
			Config:    StorageConfiguration{Durability: engine.UtterlyNoSync, Mapping: m, Layout: layout},
			BatchSize: opts.BatchSize,
		})
	}
	return cases
}
