//go:build windows

package rtreedb

import "os"

// lockFile is a no-op on Windows: no lock is taken, so a second open of
// the same tree file is not detected there.
func lockFile(f *os.File) error {
	return nil
}

func unlockFile(f *os.File) {}
