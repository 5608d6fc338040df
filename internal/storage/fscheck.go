package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var networkFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// NetworkFilesystemError reports a state path on a network mount, where
// SQLite and flock(2) locking are unreliable.
type NetworkFilesystemError struct {
	Path   string
	FSType string
}

func (e *NetworkFilesystemError) Error() string {
	return fmt.Sprintf("state path %q is on network filesystem %q; SQLite and the serve lock need a local filesystem, set state.path to a local disk",
		e.Path, e.FSType)
}

// CheckLocalFilesystem rejects paths on a network filesystem. The path need
// not exist yet; its nearest existing parent is inspected. Platforms without
// detection pass.
func CheckLocalFilesystem(path string) error {
	return checkLocalFilesystem(path, filesystemType)
}

func checkLocalFilesystem(path string, detect func(string) (string, bool, error)) error {
	if path == "" {
		return fmt.Errorf("state path is empty")
	}

	existing, err := nearestExistingPath(path)
	if err != nil {
		return fmt.Errorf("resolve state path %q: %w", path, err)
	}

	fsType, ok, err := detect(existing)
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", existing, err)
	}
	if ok && isNetworkFilesystem(fsType) {
		return &NetworkFilesystemError{Path: path, FSType: fsType}
	}
	return nil
}

func nearestExistingPath(path string) (string, error) {
	candidate, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	for {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", path)
		}
		candidate = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	_, found := networkFilesystems[strings.ToLower(strings.TrimSpace(fsType))]
	return found
}
