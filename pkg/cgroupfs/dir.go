package cgroupfs

import (
	"os"
	"path/filepath"
	"strings"
)

// ListFlags selects which entry kinds ReadDir reports.
type ListFlags uint

const (
	ListDirs ListFlags = 1 << iota
	ListFiles

	ListAll = ListDirs | ListFiles
)

// Entries partitions the immediate children of a directory.
type Entries struct {
	Dirs  []string
	Files []string
}

// ReadDir lists the immediate children of path, partitioned into
// directories and everything else. Kinds excluded by flags stay nil.
// The listing does not recurse.
func ReadDir(path string, flags ListFlags) (Entries, error) {
	dents, err := os.ReadDir(path)
	if err != nil {
		return Entries{}, classify(err)
	}
	var ents Entries
	for _, de := range dents {
		if de.IsDir() {
			if flags&ListDirs != 0 {
				ents.Dirs = append(ents.Dirs, de.Name())
			}
		} else if flags&ListFiles != 0 {
			ents.Files = append(ents.Files, de.Name())
		}
	}
	return ents, nil
}

// IsDir reports whether path names a directory.
func IsDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// Glob expands pattern against the filesystem, one '*' per path
// segment (filepath.Match rules). Missing intermediate directories
// yield no matches, not an error. Matches come back sorted, but
// callers must treat them as a set.
func Glob(pattern string, dirsOnly bool) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		// Only a malformed pattern errors.
		return nil, err
	}
	if !dirsOnly {
		return matches, nil
	}
	dirs := matches[:0]
	for _, m := range matches {
		if IsDir(m) {
			dirs = append(dirs, m)
		}
	}
	return dirs, nil
}

// RemovePrefix strips prefix from the start of s. Anything else,
// including prefix occurring later in s, leaves s unchanged.
func RemovePrefix(s, prefix string) string {
	return strings.TrimPrefix(s, prefix)
}

// IsUnderParentPath reports whether path sits at or below parent.
// Both must be non-empty. Comparison is by whole path segment, so
// "/sys/fs" is not a parent of "/sys/fsx".
func IsUnderParentPath(parent, path string) bool {
	if parent == "" || path == "" {
		return false
	}
	pseg := pathSegments(parent)
	cseg := pathSegments(path)
	if len(cseg) < len(pseg) {
		return false
	}
	for i := range pseg {
		if cseg[i] != pseg[i] {
			return false
		}
	}
	return true
}

func pathSegments(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			segs = append(segs, s)
		}
	}
	return segs
}
