package cgroupfs

import (
	"fmt"
	"strconv"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/moby/sys/mountinfo"
)

// ReadVmstat parses a /proc/vmstat format file. Missing keys read as
// zero.
func ReadVmstat(path string) (map[string]uint64, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	return parseKV(lines), nil
}

// ReadMeminfo parses a /proc/meminfo format file into bytes.
// "kB"-suffixed values are scaled; bare counters (HugePages_Total and
// friends) are taken as-is. Rows that do not parse are skipped, and
// missing keys read as zero.
func ReadMeminfo(path string) (map[string]uint64, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	info := make(map[string]uint64, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasSuffix(fields[0], ":") {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		if len(fields) >= 3 && fields[2] == "kB" {
			v *= 1024
		}
		info[strings.TrimSuffix(fields[0], ":")] = v
	}
	return info, nil
}

// ReadCgroup2MountPoint scans a /proc/mounts format file for the
// cgroup-v2 unified hierarchy and returns its mount point with a
// trailing slash.
func ReadCgroup2MountPoint(path string) (string, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return "", err
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[2] == "cgroup2" {
			return ensureTrailingSlash(fields[1]), nil
		}
	}
	return "", fmt.Errorf("%w: no cgroup2 mount in %s", cerrdefs.ErrNotFound, path)
}

// DetectCgroup2MountPoint finds the unified hierarchy on the running
// host via /proc/self/mountinfo.
func DetectCgroup2MountPoint() (string, error) {
	mounts, err := mountinfo.GetMounts(mountinfo.FSTypeFilter("cgroup2"))
	if err != nil {
		return "", err
	}
	if len(mounts) == 0 {
		return "", fmt.Errorf("%w: no cgroup2 mount", cerrdefs.ErrNotFound)
	}
	return ensureTrailingSlash(mounts[0].Mountpoint), nil
}

func ensureTrailingSlash(p string) string {
	if !strings.HasSuffix(p, "/") {
		return p + "/"
	}
	return p
}
