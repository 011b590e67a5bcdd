//go:build unix

package emit

import (
	"os"

	"golang.org/x/sys/unix"
)

// fsync flushes f's data to stable storage via the raw syscall rather than
// relying on os.File.Sync's cross-platform wrapper, matching how
// saferwall-pe's build-tagged file-I/O paths reach for golang.org/x/sys
// directly on unix targets.
func fsync(f *os.File) error {
	return unix.Fsync(int(f.Fd()))
}
