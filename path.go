// Package oomd tracks cgroup-v2 resource state for a pressure
// reclamation daemon. It keeps one context per watched cgroup, each
// holding the current and previous control-file snapshots, and
// drives the kernel interface in pkg/cgroupfs.
package oomd

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	cerrdefs "github.com/containerd/errdefs"

	"github.com/lastweek/source-oomd/pkg/cgroupfs"
)

// ErrPathEscape flags a cgroup path that would resolve outside its
// hierarchy root. Nothing recovers from it at this layer; it means
// the configuration that produced the path is broken.
var ErrPathEscape = errors.New("cgroup path escapes hierarchy root")

// CgroupPath names one cgroup as a hierarchy root plus a relative
// path. It is an immutable value, comparable and usable as a map
// key. The relative part may carry '*' wildcards; such patterns are
// expanded by OomdContext.RefreshMatching, never read directly.
type CgroupPath struct {
	root string
	rel  string
}

// NewCgroupPath builds a CgroupPath from the hierarchy mount root
// and a path relative to it. An empty (or "/") rel names the root
// cgroup itself. A rel that climbs out of the root fails with
// ErrPathEscape.
func NewCgroupPath(root, rel string) (CgroupPath, error) {
	if root == "" {
		return CgroupPath{}, fmt.Errorf("%w: empty cgroup root", cerrdefs.ErrInvalidArgument)
	}
	root = filepath.Clean(root)
	rel = strings.TrimLeft(rel, "/")
	if rel != "" {
		rel = path.Clean(rel)
		if rel == "." {
			rel = ""
		}
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return CgroupPath{}, fmt.Errorf("%w: %q", ErrPathEscape, rel)
	}
	p := CgroupPath{root: root, rel: rel}
	if !cgroupfs.IsUnderParentPath(root, p.Absolute()) {
		return CgroupPath{}, fmt.Errorf("%w: %q", ErrPathEscape, p.Absolute())
	}
	return p, nil
}

// Root returns the hierarchy mount root.
func (p CgroupPath) Root() string { return p.root }

// Relative returns the path below the root, "" for the root cgroup.
func (p CgroupPath) Relative() string { return p.rel }

// Absolute returns the full filesystem path of the cgroup directory.
func (p CgroupPath) Absolute() string { return filepath.Join(p.root, p.rel) }

func (p CgroupPath) String() string { return p.Absolute() }

// IsRoot reports whether p names the hierarchy root cgroup.
func (p CgroupPath) IsRoot() bool { return p.rel == "" }

// IsPattern reports whether the relative part contains a glob
// wildcard.
func (p CgroupPath) IsPattern() bool { return strings.Contains(p.rel, "*") }

// Join returns the path of a child cgroup.
func (p CgroupPath) Join(child string) (CgroupPath, error) {
	return NewCgroupPath(p.root, path.Join(p.rel, child))
}

// matches reports whether the concrete path cp falls under the
// pattern p: same root, glob match on the relative part. A pattern
// without wildcards matches only itself.
func (p CgroupPath) matches(cp CgroupPath) bool {
	if p.root != cp.root {
		return false
	}
	ok, err := path.Match(p.rel, cp.rel)
	return err == nil && ok
}
