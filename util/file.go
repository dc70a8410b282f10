package util

import (
	"io/fs"
	"os"
	"path/filepath"
)

// DirSize sums the apparent size of every regular file under path.
func DirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// PathExist reports whether path names an existing file or directory.
func PathExist(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
