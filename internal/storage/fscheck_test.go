package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func fixedFS(name string) func(string) (string, bool, error) {
	return func(string) (string, bool, error) { return name, true, nil }
}

func TestCheckLocalFilesystem_AllowsLocal(t *testing.T) {
	t.Parallel()

	if err := checkLocalFilesystem(filepath.Join(t.TempDir(), "state.db"), fixedFS("ext4")); err != nil {
		t.Fatalf("expected local filesystem to pass, got: %v", err)
	}
}

func TestCheckLocalFilesystem_RejectsNetwork(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.db")
	err := checkLocalFilesystem(path, fixedFS("NFS"))

	var nfsErr *NetworkFilesystemError
	if !errors.As(err, &nfsErr) {
		t.Fatalf("expected NetworkFilesystemError, got %v", err)
	}
	if nfsErr.FSType != "NFS" || nfsErr.Path != path {
		t.Fatalf("unexpected error fields: %+v", nfsErr)
	}
}

func TestCheckLocalFilesystem_InspectsNearestExistingParent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var inspected string
	err := checkLocalFilesystem(filepath.Join(root, "nested", "dir", "state.db"), func(p string) (string, bool, error) {
		inspected = p
		return "apfs", true, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inspected != root {
		t.Fatalf("inspected %q, want %q", inspected, root)
	}
}

func TestCheckLocalFilesystem_UndetectedPasses(t *testing.T) {
	t.Parallel()

	err := checkLocalFilesystem(filepath.Join(t.TempDir(), "state.db"), func(string) (string, bool, error) {
		return "", false, nil
	})
	if err != nil {
		t.Fatalf("undetected filesystem should pass, got: %v", err)
	}
}

func TestIsNetworkFilesystem(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"nfs":    true,
		"SMBFS":  true,
		" cifs ": true,
		"apfs":   false,
		"0x6969": false,
	}
	for fs, want := range cases {
		if got := isNetworkFilesystem(fs); got != want {
			t.Fatalf("isNetworkFilesystem(%q) = %v, want %v", fs, got, want)
		}
	}
}

func TestOpenSQLiteOnLocalDisk(t *testing.T) {
	t.Parallel()

	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "sub", "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = db.Close()
}
