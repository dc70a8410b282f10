package kvbench

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotusdblabs/kvbench/engine"
)

func sampleReport(engineName string) *Report {
	return &Report{
		RunID:     "1",
		Engine:    engineName,
		StartedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Seed:      42,
		Benchmarks: []BenchmarkResult{{
			Name: PlainSuiteName,
			Cases: []CaseResult{{
				Label:     "KV Read | Unmapped",
				Kind:      ReadCase,
				Config:    StorageConfiguration{Durability: engine.UtterlyNoSync, Mapping: engine.Unmapped, Layout: PlainKV},
				BatchSize: 1000,
				Measurements: []MeasurementRecord{{
					Durations: [2]float64{1.5, 2.5},
					Size:      4096,
					Phases:    []PhaseTiming{{Table: LargeTable, Op: OpRead, Seconds: 1.5, Ops: 10}},
				}},
			}},
		}},
	}
}

func TestWriteReadReport(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport("bolt")

	path, err := WriteReport(dir, r)
	require.NoError(t, err)
	assert.Equal(t, ReportPath(dir, "bolt"), path)

	got, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, r.RunID, got.RunID)
	assert.True(t, r.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, r.Benchmarks, got.Benchmarks)
}

func TestWriteReportReplaces(t *testing.T) {
	dir := t.TempDir()
	first := sampleReport("bolt")
	_, err := WriteReport(dir, first)
	require.NoError(t, err)

	second := sampleReport("bolt")
	second.RunID = "2"
	second.Benchmarks = nil
	path, err := WriteReport(dir, second)
	require.NoError(t, err)

	got, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, "2", got.RunID)
	assert.Empty(t, got.Benchmarks)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadReportMissing(t *testing.T) {
	_, err := ReadReport(ReportPath(t.TempDir(), "bolt"))
	assert.ErrorIs(t, err, ErrFilesystem)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
