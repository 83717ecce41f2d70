//go:build !unix

package storage

import "os"

// lockFile is a no-op where flock is unavailable; run one process per file store.
func lockFile(string) (*os.File, error) { return nil, nil }

func unlockFile(f *os.File) error {
	if f == nil {
		return nil
	}
	return f.Close()
}
