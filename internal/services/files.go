package services

import (
	"fmt"
	"os"
)

// moveFile renames src to dst, falling back to copy and remove when the two
// paths are on different filesystems (the chunk dir lives under os.TempDir).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("copied %s but could not remove it: %w", src, err)
	}
	return nil
}
