package engine

import (
	"bytes"
	"encoding/binary"
)

// AppendTableKey appends key prefixed with the table id, the layout used by
// backends without native tables.
func AppendTableKey(dst []byte, t *Table, key []byte) []byte {
	dst = append(dst, t.ID)
	return append(dst, key...)
}

// AppendDupKey appends the sort key of one value of a DupSort table:
// uvarint(len(key)) | key | value. Values of one key sort by content and a
// repeated value lands on the same sort key, which deduplicates it.
func AppendDupKey(dst, key, value []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(key)))
	dst = append(dst, key...)
	return append(dst, value...)
}

// SplitDupKey is the inverse of AppendDupKey.
func SplitDupKey(enc []byte) (key, value []byte, err error) {
	n, sz := binary.Uvarint(enc)
	if sz <= 0 || uint64(len(enc)-sz) < n {
		return nil, nil, ErrBadDupKey
	}
	key = enc[sz : sz+int(n)]
	return key, enc[sz+int(n):], nil
}

// MatchDup reports whether found, a sort key returned by a seek to the
// encoding of (key, prefix), belongs to key and starts with prefix, and
// returns the stored value.
func MatchDup(found, seek []byte) ([]byte, bool, error) {
	if found == nil || !bytes.HasPrefix(found, seek) {
		return nil, false, nil
	}
	_, value, err := SplitDupKey(found)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// MatchTableDup is MatchDup for flat keyspaces where found and seek both
// start with the table id.
func MatchTableDup(found, seek []byte) ([]byte, bool, error) {
	if len(found) == 0 || !bytes.HasPrefix(found, seek) {
		return nil, false, nil
	}
	_, value, err := SplitDupKey(found[1:])
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}
