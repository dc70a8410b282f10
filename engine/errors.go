package engine

import "github.com/cockroachdb/errors"

var (
	ErrInvalidGeometry = errors.New("invalid instance geometry")
	ErrTableExists     = errors.New("table already exists")
	ErrTableNotFound   = errors.New("table not found")
	ErrTooManyTables   = errors.New("too many tables")
	ErrReadersFull     = errors.New("all reader slots are taken")
	ErrValueSize       = errors.New("value size does not match the fixed size of the table")
	ErrTxnClosed       = errors.New("transaction is already closed")
	ErrNotDupSort      = errors.New("table is not a dup sort table")
	ErrDupSort         = errors.New("table is a dup sort table, use a cursor")
	ErrBadDupKey       = errors.New("malformed dup sort key")
	ErrKeyIsEmpty      = errors.New("the key is empty")
)
