//go:build !darwin && !linux

package storage

// filesystemType reports no detection on this platform.
func filesystemType(string) (string, bool, error) {
	return "", false, nil
}
