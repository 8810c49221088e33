package scanner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var supportedExtensions = map[string]struct{}{
	".avif": {},
	".gif":  {},
	".jpeg": {},
	".jpg":  {},
	".pef":  {},
	".png":  {},
}

func IsSupported(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}

	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ListDirectory returns the supported image files directly inside dir,
// sorted by name. Subdirectories are not descended into.
func ListDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list input dir %s: %w", dir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsSupported(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	return paths, nil
}

// ReadList reads one path per line. Blank lines are ignored; paths are taken
// as given and not filtered by extension.
func ReadList(r io.Reader) ([]string, error) {
	paths := make([]string, 0)
	lines := bufio.NewScanner(r)
	for lines.Scan() {
		path := strings.TrimRight(lines.Text(), "\r")
		if strings.TrimSpace(path) == "" {
			continue
		}
		paths = append(paths, path)
	}

	if err := lines.Err(); err != nil {
		return nil, fmt.Errorf("read input list: %w", err)
	}

	return paths, nil
}
