//go:build !unix

package emit

import "os"

// fsync falls back to the stdlib wrapper on non-unix targets, where
// golang.org/x/sys has no single shared Fsync syscall shape.
func fsync(f *os.File) error {
	return f.Sync()
}
