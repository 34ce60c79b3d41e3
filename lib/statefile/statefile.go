// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

// Package statefile writes small state files atomically. A reader
// either sees the previous complete contents or the new complete
// contents, never a torn write: data goes to a temporary file in the
// same directory, is fsynced, and is renamed into place.
//
// The gateway's file session store uses this to persist the resume
// state (session id, last sequence) across process restarts.
package statefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Write atomically replaces path with data. The file is created with
// mode 0600 because session state includes a resumable session id.
// The parent directory must exist.
func Write(path string, data []byte) error {
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("statefile: creating temporary file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("statefile: writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("statefile: syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("statefile: closing temporary file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("statefile: renaming into place: %w", err)
	}

	// The rename is only durable once the directory entry is flushed.
	if directory, err := os.Open(filepath.Dir(path)); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// Read returns the contents of path. A missing file yields an error
// wrapping os.ErrNotExist.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("statefile: %w", err)
	}
	return data, nil
}

// Remove deletes path. Removing a file that does not exist is not an
// error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("statefile: removing %s: %w", path, err)
	}
	return nil
}
