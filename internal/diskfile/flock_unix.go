//go:build !windows

package diskfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// flock takes a non-blocking exclusive advisory lock on f so a second
// process cannot open the same index file concurrently — the index owns
// its file handle exclusively for as long as it is open.
func flock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func funlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
