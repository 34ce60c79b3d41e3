// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package statefile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")

	if err := Write(path, []byte("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(path, []byte("second")); err != nil {
		t.Fatalf("Write (overwrite): %v", err)
	}

	data, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("Read = %q, want %q", data, "second")
	}
}

func TestWriteFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")
	if err := Write(path, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("mode = %o, want 0600", mode)
	}
}

func TestWriteLeavesNoTemporaryFile(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "session.cbor")
	if err := Write(path, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestWriteMissingParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "session.cbor")
	if err := Write(path, []byte("x")); err == nil {
		t.Fatal("expected error when parent directory is missing")
	}
}

func TestReadNonexistent(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read error = %v, want os.ErrNotExist", err)
	}
}

func TestRemoveIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")
	if err := Write(path, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for range 2 {
		if err := Remove(path); err != nil {
			t.Fatalf("Remove: %v", err)
		}
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still present after Remove")
	}
}
