//go:build darwin

package storage

import (
	"fmt"
	"syscall"
)

func filesystemType(path string) (string, bool, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return "", false, fmt.Errorf("statfs %q: %w", path, err)
	}
	name := make([]byte, 0, len(stat.Fstypename))
	for _, c := range stat.Fstypename {
		if c == 0 {
			break
		}
		name = append(name, byte(c))
	}
	return string(name), true, nil
}
