package fileutil

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var fileNameReplacer = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-",
	"?", "", "\"", "", "<", "", ">", "", "|", "",
	"\x00", "",
)

// SanitizeFileName turns an arbitrary identifier into a single safe path
// component. It returns fallback when nothing usable remains.
func SanitizeFileName(name, fallback string) string {
	cleaned := strings.TrimSpace(fileNameReplacer.Replace(name))
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return fallback
	}
	return cleaned
}

// RemoveFiles deletes every path, ignoring files that are already gone.
func RemoveFiles(paths ...string) error {
	var errs []error
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// FileSize returns the size of path, or 0 if it cannot be read.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
