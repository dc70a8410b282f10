package kvbench

import "github.com/cockroachdb/errors"

var (
	ErrProvision      = errors.New("provision benchmark instance failed")
	ErrTransaction    = errors.New("benchmark transaction failed")
	ErrFilesystem     = errors.New("filesystem operation failed")
	ErrInvalidOptions = errors.New("invalid benchmark options")
	ErrIterationPanic = errors.New("benchmark iteration panicked")
	ErrTargetLocked   = errors.New("the target directory is used by another benchmark process")
	ErrUnknownSuite   = errors.New("unknown benchmark suite")
	ErrMeasurement    = errors.New("measurement does not match its layout")
)
