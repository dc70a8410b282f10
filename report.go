package kvbench

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

const reportSuffix = "_report.json"

// Report is everything one run measured.
type Report struct {
	RunID      string            `json:"run_id"`
	Engine     string            `json:"engine"`
	Host       Host              `json:"host"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Seed       uint64            `json:"seed"`
	Iterations int               `json:"iterations"`
	Extended   bool              `json:"extended"`
	Profiles   []RecordProfile   `json:"profiles"`
	Benchmarks []BenchmarkResult `json:"benchmarks"`
}

type Host struct {
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	NumCPU    int    `json:"num_cpu"`
	GoVersion string `json:"go_version"`
	Hostname  string `json:"hostname,omitempty"`
}

// BenchmarkResult holds the cases of one suite.
type BenchmarkResult struct {
	Name  string       `json:"name"`
	Cases []CaseResult `json:"cases"`
}

// CaseResult holds one record per iteration of a case.
type CaseResult struct {
	Label        string               `json:"label"`
	Kind         CaseKind             `json:"kind"`
	Config       StorageConfiguration `json:"config"`
	BatchSize    int                  `json:"batch_size"`
	Measurements []MeasurementRecord  `json:"measurements"`
}

// ReportPath is where WriteReport puts the report of engine.
func ReportPath(dir, engine string) string {
	return filepath.Join(dir, engine+reportSuffix)
}

// WriteReport stores r as indented JSON, replacing any earlier report of the
// same engine.
func WriteReport(dir string, r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encode report")
	}
	path := ReportPath(dir, r.Engine)
	tmp, err := os.CreateTemp(dir, "."+r.Engine+"_report-*.json")
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "create report"), ErrFilesystem)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return "", errors.Mark(errors.Wrap(err, "chmod report"), ErrFilesystem)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return "", errors.Mark(errors.Wrap(err, "write report"), ErrFilesystem)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Mark(errors.Wrap(err, "close report"), ErrFilesystem)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Mark(errors.Wrap(err, "replace report"), ErrFilesystem)
	}
	return path, nil
}

func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read report %s", path), ErrFilesystem)
	}
	r := new(Report)
	if err := json.Unmarshal(data, r); err != nil {
		return nil, errors.Wrapf(err, "decode report %s", path)
	}
	return r, nil
}
