package validation

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileExistsError indicates a file does not exist with a descriptive message
type FileExistsError struct {
	Path    string
	Message string
}

func (e *FileExistsError) Error() string {
	return e.Message
}

// CheckFileExists checks if a regular file exists at the given path.
//
// Returns nil if the file exists, or a *FileExistsError describing the failure.
func CheckFileExists(path string) error {
	if path == "" {
		return &FileExistsError{
			Path:    path,
			Message: "file path cannot be empty",
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileExistsError{
				Path:    path,
				Message: fmt.Sprintf("file not found: %s", path),
			}
		}
		return &FileExistsError{
			Path:    path,
			Message: fmt.Sprintf("error checking file %s: %v", path, err),
		}
	}

	if info.IsDir() {
		return &FileExistsError{
			Path:    path,
			Message: fmt.Sprintf("path is a directory, not a file: %s", path),
		}
	}

	return nil
}

// CheckDirWritable verifies that files can be created in dir. A missing
// directory is checked through its nearest existing parent, since the CLI
// creates output directories on demand.
func CheckDirWritable(dir string) error {
	if dir == "" {
		dir = "."
	}

	checkDir := dir
	for {
		info, err := os.Stat(checkDir)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("not a directory: %s", checkDir)
			}
			break
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("error checking %s: %w", checkDir, err)
		}
		parent := filepath.Dir(checkDir)
		if parent == checkDir {
			return fmt.Errorf("no existing parent for %s", dir)
		}
		checkDir = parent
	}

	f, err := os.CreateTemp(checkDir, ".diffusionto-write-check-*")
	if err != nil {
		return fmt.Errorf("cannot write to %s: %w", checkDir, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}
