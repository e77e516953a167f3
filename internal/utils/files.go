package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir ensures the provided directory exists.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// SafeWriteFile writes data to a temp file and atomically renames it into place.
func SafeWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// PrettyJSON marshals a value as indented JSON.
func PrettyJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return b, nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// UniquePath returns dir/name, or dir/base__N.ext for the first N >= 2 that
// does not exist yet.
func UniquePath(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		_, err := os.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		if n > 10000 {
			return "", fmt.Errorf("no free file name for %s in %s", name, dir)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s__%d%s", base, n, ext))
	}
}
