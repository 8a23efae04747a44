// Package filex holds small filesystem helpers for device-local storage.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDirName is the subdirectory of the working directory holding the
// agent's local database when the configured path is a bare file name.
const DataDirName = "data"

// EnsureSubDir creates (if needed) a subdirectory of the working directory
// and returns its absolute path.
func EnsureSubDir(dirName string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// ResolveDataPath places a bare database file name inside the ensured data
// subdirectory. A path that already carries a directory, absolute or
// relative, is returned unchanged.
func ResolveDataPath(name string) (string, error) {
	if filepath.IsAbs(name) || filepath.Dir(name) != "." {
		return name, nil
	}
	dir, err := EnsureSubDir(DataDirName)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
