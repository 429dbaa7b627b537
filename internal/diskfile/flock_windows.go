//go:build windows

package diskfile

import "os"

// Windows has no POSIX advisory flock; this is a no-op stub.
func flock(f *os.File) error   { return nil }
func funlock(f *os.File) error { return nil }
