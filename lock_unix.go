//go:build unix

package rtreedb

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes a non-blocking advisory exclusive lock on f, guarding
// against the common accident of opening the same tree file twice from
// this machine.
func lockFile(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return WrapError(ErrIo, err)
	}
	return nil
}

func unlockFile(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
