package kvbench

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
)

const lockFileName = "kvbench.lock"

// lockTarget prevents two processes from benchmarking in one directory.
func lockTarget(dir string) (*flock.Flock, error) {
	fileLock := flock.New(filepath.Join(dir, lockFileName))
	hold, err := fileLock.TryLock()
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "lock %s", dir), ErrFilesystem)
	}
	if !hold {
		return nil, errors.Wrapf(ErrTargetLocked, "%s", dir)
	}
	return fileLock, nil
}
