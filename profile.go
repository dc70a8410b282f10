package kvbench

import "github.com/cockroachdb/errors"

const (
	// SmallTable holds the small profile, many tiny records.
	SmallTable = "sim_blockheight"
	// LargeTable holds the large profile, few big records.
	LargeTable = "sim_blocks"
)

// RecordProfile fixes the shape of every record written to one table.
type RecordProfile struct {
	Name      string `yaml:"name" json:"name"`
	KeySize   int    `yaml:"key_size" json:"key_size"`
	ValueSize int    `yaml:"value_size" json:"value_size"`
	Count     int    `yaml:"count" json:"count"`
}

var (
	SmallProfile = RecordProfile{Name: SmallTable, KeySize: 8, ValueSize: 32, Count: 3_000_000}
	LargeProfile = RecordProfile{Name: LargeTable, KeySize: 32, ValueSize: 60 * 1024, Count: 40_000}
)

// RecordSize is the byte length of one record, key and value together.
func (p RecordProfile) RecordSize() int { return p.KeySize + p.ValueSize }

// PayloadSize is the raw byte count the profile writes.
func (p RecordProfile) PayloadSize() int64 { return int64(p.RecordSize()) * int64(p.Count) }

func (p RecordProfile) Validate() error {
	switch {
	case p.Name == "":
		return errors.Wrap(ErrInvalidOptions, "record profile without a table name")
	case p.KeySize <= 0:
		return errors.Wrapf(ErrInvalidOptions, "profile %s: key size %d", p.Name, p.KeySize)
	case p.ValueSize <= 0:
		return errors.Wrapf(ErrInvalidOptions, "profile %s: value size %d", p.Name, p.ValueSize)
	case p.Count <= 0:
		return errors.Wrapf(ErrInvalidOptions, "profile %s: record count %d", p.Name, p.Count)
	}
	return nil
}
