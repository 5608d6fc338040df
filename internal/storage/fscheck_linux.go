//go:build linux

package storage

import (
	"fmt"
	"syscall"
)

// statfs f_type magic numbers for network mounts.
var linuxNetworkMagic = map[uint32]string{
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x517B:     "smbfs",
	0xFE534D42: "smb2",
}

func filesystemType(path string) (string, bool, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return "", false, fmt.Errorf("statfs %q: %w", path, err)
	}
	if name, ok := linuxNetworkMagic[uint32(stat.Type)]; ok {
		return name, true, nil
	}
	return fmt.Sprintf("0x%x", uint32(stat.Type)), true, nil
}
