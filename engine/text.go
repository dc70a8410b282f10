package engine

import "github.com/cockroachdb/errors"

var ErrUnknownMode = errors.New("unknown mode")

func ParseDurability(s string) (Durability, error) {
	for _, d := range []Durability{Durable, SafeNoSync, UtterlyNoSync} {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownMode, "durability %q", s)
}

func ParseMappingMode(s string) (MappingMode, error) {
	for _, m := range []MappingMode{MemoryMapped, Unmapped} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownMode, "mapping mode %q", s)
}

func (d Durability) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Durability) UnmarshalText(b []byte) (err error) {
	*d, err = ParseDurability(string(b))
	return err
}

func (m MappingMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MappingMode) UnmarshalText(b []byte) (err error) {
	*m, err = ParseMappingMode(string(b))
	return err
}
