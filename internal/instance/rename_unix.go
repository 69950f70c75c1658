//go:build !windows

package instance

import "os"

// os.Rename is atomic on Unix.
func atomicRename(src, dst string) error {
	return os.Rename(src, dst)
}
