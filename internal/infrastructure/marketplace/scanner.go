package marketplace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
)

// UnknownVersion is reported when a file name carries no version
const UnknownVersion = "unknown"

// LocalArchive is a plugin archive candidate found on disk
type LocalArchive struct {
	Path     string
	FileName string
	Size     int64
	Modified time.Time
	Name     string
	Version  string
}

// ScanArchives lists .tar.gz and .tar files directly inside dirs. Unreadable
// or missing directories are skipped. Results are sorted by path and each
// file appears once even when dirs overlap.
func ScanArchives(dirs []string) []LocalArchive {
	seen := make(map[string]bool)
	var found []LocalArchive

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !isArchiveName(entry.Name()) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			if seen[path] {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			seen[path] = true

			name, version := ParseArchiveName(entry.Name())
			found = append(found, LocalArchive{
				Path:     path,
				FileName: entry.Name(),
				Size:     info.Size(),
				Modified: info.ModTime(),
				Name:     name,
				Version:  version,
			})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found
}

// ParseArchiveName infers plugin name and version from names like
// "net-tools-v1.2.3.tar.gz" or "net-tools-1.2.3.tar"
func ParseArchiveName(fileName string) (name, version string) {
	base := strings.TrimSuffix(fileName, ".tar.gz")
	if base == fileName {
		base = strings.TrimSuffix(fileName, ".tar")
	}

	if i := strings.LastIndex(base, "-"); i > 0 && i < len(base)-1 {
		candidate := base[i+1:]
		if candidate[0] == 'v' || unicode.IsDigit(rune(candidate[0])) {
			return base[:i], candidate
		}
	}
	return base, UnknownVersion
}

func isArchiveName(name string) bool {
	return strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tar")
}
