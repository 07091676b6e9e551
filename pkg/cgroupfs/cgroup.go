package cgroupfs

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ReadMemoryCurrent returns memory.current in bytes.
func ReadMemoryCurrent(d *DirFd) (uint64, error) {
	return readScalarAt(d, MemCurrentFile)
}

// ReadMemoryMin returns the memory.min hard protection in bytes.
func ReadMemoryMin(d *DirFd) (uint64, error) {
	return readScalarAt(d, MemMinFile)
}

// ReadMemoryLow returns the memory.low best-effort protection in bytes.
func ReadMemoryLow(d *DirFd) (uint64, error) {
	return readScalarAt(d, MemLowFile)
}

// ReadMemoryHigh returns the memory.high throttle limit in bytes.
func ReadMemoryHigh(d *DirFd) (uint64, error) {
	return readScalarAt(d, MemHighFile)
}

// ReadMemoryHighTmp returns the limit half of memory.high.tmp. The
// kernel reports "<limit> <remaining-usec>"; only the limit is
// interesting here.
func ReadMemoryHighTmp(d *DirFd) (uint64, error) {
	return readScalarAt(d, MemHighTmpFile)
}

// ReadMemoryMax returns the memory.max hard limit in bytes.
func ReadMemoryMax(d *DirFd) (uint64, error) {
	return readScalarAt(d, MemMaxFile)
}

// ReadSwapCurrent returns memory.swap.current in bytes.
func ReadSwapCurrent(d *DirFd) (uint64, error) {
	return readScalarAt(d, MemSwapCurrentFile)
}

// readScalarAt reads the first whitespace token of the named control
// file. "max" decodes to math.MaxUint64.
func readScalarAt(d *DirFd, name string) (uint64, error) {
	lines, err := d.ReadLines(name)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, badControlFile(d.join(name))
	}
	fields := strings.Fields(lines[0])
	if len(fields) == 0 {
		return 0, badControlFile(d.join(name))
	}
	return parseScalar(fields[0], d.join(name))
}

func parseScalar(tok, path string) (uint64, error) {
	if tok == "max" {
		return math.MaxUint64, nil
	}
	v, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, badControlFile(path)
	}
	return v, nil
}

// ReadMemoryOomGroup reports whether the kernel OOM killer takes the
// cgroup as a unit.
func ReadMemoryOomGroup(d *DirFd) (bool, error) {
	lines, err := d.ReadLines(MemOomGroupFile)
	if err != nil {
		return false, err
	}
	if len(lines) == 1 {
		switch strings.TrimSpace(lines[0]) {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
	}
	return false, badControlFile(d.join(MemOomGroupFile))
}

// ReadIsPopulated reports the populated flag of cgroup.events:
// whether the cgroup or any descendant hosts live processes.
func ReadIsPopulated(d *DirFd) (bool, error) {
	lines, err := d.ReadLines(CgroupEventsFile)
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "populated" {
			switch fields[1] {
			case "0":
				return false, nil
			case "1":
				return true, nil
			}
			break
		}
	}
	return false, badControlFile(d.join(CgroupEventsFile))
}

// ReadMemoryStat returns the memory.stat counters. Missing keys read
// as zero, so callers may probe for keys their kernel may not have.
func ReadMemoryStat(d *DirFd) (map[string]uint64, error) {
	return readKVAt(d, MemStatFile)
}

// ReadCgroupStat returns the cgroup.stat counters.
func ReadCgroupStat(d *DirFd) (map[string]uint64, error) {
	return readKVAt(d, CgroupStatFile)
}

// ReadNrDyingDescendants returns the number of descendant cgroups
// that were deleted but still pin kernel memory.
func ReadNrDyingDescendants(d *DirFd) (uint64, error) {
	kv, err := ReadCgroupStat(d)
	if err != nil {
		return 0, err
	}
	return kv["nr_dying_descendants"], nil
}

func readKVAt(d *DirFd, name string) (map[string]uint64, error) {
	lines, err := d.ReadLines(name)
	if err != nil {
		return nil, err
	}
	return parseKV(lines), nil
}

// parseKV parses "key value" rows. Rows that do not parse are
// skipped to keep the zero-default probing contract.
func parseKV(lines []string) map[string]uint64 {
	kv := make(map[string]uint64, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		kv[fields[0]] = v
	}
	return kv
}

// ReadControllers returns the controllers enabled for the cgroup,
// de-duplicated and sorted.
func ReadControllers(d *DirFd) ([]string, error) {
	lines, err := d.ReadLines(CgroupControllersFile)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, line := range lines {
		for _, tok := range strings.Fields(line) {
			seen[tok] = struct{}{}
		}
	}
	ctrls := make([]string, 0, len(seen))
	for c := range seen {
		ctrls = append(ctrls, c)
	}
	sort.Strings(ctrls)
	return ctrls, nil
}

// ReadPids returns the pids attached to the cgroup. An empty cgroup
// yields an empty, non-nil slice; only a missing cgroup.procs is an
// error.
func ReadPids(d *DirFd) ([]int, error) {
	lines, err := d.ReadLines(CgroupProcsFile)
	if err != nil {
		return nil, err
	}
	pids := make([]int, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, badControlFile(d.join(CgroupProcsFile))
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// IOStat is one device row of io.stat.
type IOStat struct {
	// DevID is the major:minor device number.
	DevID  string
	RBytes uint64
	WBytes uint64
	RIOs   uint64
	WIOs   uint64
	DBytes uint64
	DIOs   uint64
}

// ReadIOStat returns the per-device io.stat rows in kernel order.
// Keys the kernel does not report stay zero; unknown keys are
// skipped. A cgroup with no attributed I/O returns an empty, non-nil
// slice.
func ReadIOStat(d *DirFd) ([]IOStat, error) {
	lines, err := d.ReadLines(IOStatFile)
	if err != nil {
		return nil, err
	}
	stats := make([]IOStat, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		st := IOStat{DevID: fields[0]}
		for _, kv := range fields[1:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return nil, badControlFile(d.join(IOStatFile))
			}
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return nil, badControlFile(d.join(IOStatFile))
			}
			switch k {
			case "rbytes":
				st.RBytes = n
			case "wbytes":
				st.WBytes = n
			case "rios":
				st.RIOs = n
			case "wios":
				st.WIOs = n
			case "dbytes":
				st.DBytes = n
			case "dios":
				st.DIOs = n
			}
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// WriteMemoryHigh sets memory.high. math.MaxUint64 writes the
// literal "max".
func WriteMemoryHigh(d *DirFd, limit uint64) error {
	return d.WriteFile(MemHighFile, encodeScalar(limit))
}

// WriteMemoryHighTmp sets memory.high.tmp: a memory.high that the
// kernel reverts after the given duration. The ABI takes one line,
// "<limit> <timeout-usec>".
func WriteMemoryHighTmp(d *DirFd, limit uint64, revert time.Duration) error {
	return d.WriteFile(MemHighTmpFile, fmt.Sprintf("%s %d", encodeScalar(limit), revert.Microseconds()))
}

func encodeScalar(v uint64) string {
	if v == math.MaxUint64 {
		return "max"
	}
	return strconv.FormatUint(v, 10)
}
