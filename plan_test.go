package kvbench

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotusdblabs/kvbench/engine"
)

func TestPlan(t *testing.T) {
	opts := DefaultOptions
	suites := Plan(opts)
	require.Len(t, suites, 2)
	assert.Equal(t, PlainSuiteName, suites[0].Name)
	assert.Equal(t, DupSuiteName, suites[1].Name)

	for _, s := range suites {
		require.Len(t, s.Cases, 6)
		writes, reads := 0, 0
		for _, c := range s.Cases {
			assert.Equal(t, s.Layout, c.Config.Layout)
			assert.Equal(t, DefaultBatchSize, c.BatchSize)
			switch c.Kind {
			case WriteCase:
				writes++
				assert.NotEqual(t, engine.UtterlyNoSync, c.Config.Durability)
			case ReadCase:
				reads++
				assert.Equal(t, engine.UtterlyNoSync, c.Config.Durability)
			}
		}
		assert.Equal(t, 4, writes)
		assert.Equal(t, 2, reads)
	}

	assert.Equal(t, "KV Durable | MemoryMapped", suites[0].Cases[0].Label)
	assert.Equal(t, "KV SafeNoSync | Unmapped", suites[0].Cases[3].Label)
	assert.Equal(t, "KV Read | Unmapped", suites[0].Cases[5].Label)
	assert.Equal(t, "DupKey Durable | Unmapped", suites[1].Cases[1].Label)
}

func TestPlanExtended(t *testing.T) {
	opts := DefaultOptions
	opts.Extended = true
	for _, s := range Plan(opts) {
		require.Len(t, s.Cases, 8)
		ext := s.Cases[4:6]
		for _, c := range ext {
			assert.Equal(t, DefaultExtendedBatchSize, c.BatchSize)
			assert.Equal(t, engine.MemoryMapped, c.Config.Mapping)
			assert.Contains(t, c.Label, "B10000")
		}
		assert.Equal(t, engine.Durable, ext[0].Config.Durability)
		assert.Equal(t, engine.SafeNoSync, ext[1].Config.Durability)
		assert.Equal(t, ReadCase, s.Cases[6].Kind)
	}
}

func TestPlanSuiteFilter(t *testing.T) {
	opts := DefaultOptions
	opts.Suites = []string{SuiteDup}
	suites := Plan(opts)
	require.Len(t, suites, 1)
	assert.Equal(t, DupSuiteName, suites[0].Name)

	opts.Suites = nil
	assert.Len(t, Plan(opts), 2)
}

func TestCaseKindText(t *testing.T) {
	for _, k := range []CaseKind{WriteCase, ReadCase} {
		b, err := k.MarshalText()
		require.NoError(t, err)
		var got CaseKind
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, k, got)
	}
	var k CaseKind
	assert.ErrorIs(t, k.UnmarshalText([]byte("scan")), engine.ErrUnknownMode)
}
