// Package cgroupfs reads and writes cgroup-v2 and proc control files.
//
// Cgroup accessors operate relative to an open directory handle
// (DirFd): control files are opened with openat(2) against the handle,
// so a cgroup resolved once keeps being read through the same
// descriptor even if its path is removed or replaced in between.
//
// The kernel reports unlimited values as the literal "max"; those
// decode to math.MaxUint64. A missing control file is a not-found
// error, never a zero value: callers that want absent-vs-zero
// semantics get to keep them.
package cgroupfs

// cgroup-v2 control file names.
const (
	CgroupControllersFile = "cgroup.controllers"
	CgroupEventsFile      = "cgroup.events"
	CgroupProcsFile       = "cgroup.procs"
	CgroupStatFile        = "cgroup.stat"
	IOPressureFile        = "io.pressure"
	IOStatFile            = "io.stat"
	MemCurrentFile        = "memory.current"
	MemHighFile           = "memory.high"
	MemHighTmpFile        = "memory.high.tmp"
	MemLowFile            = "memory.low"
	MemMaxFile            = "memory.max"
	MemMinFile            = "memory.min"
	MemOomGroupFile       = "memory.oom.group"
	MemPressureFile       = "memory.pressure"
	MemStatFile           = "memory.stat"
	MemSwapCurrentFile    = "memory.swap.current"
)

// Default locations of the process-global files. The readers take the
// path as an argument so tests can point them at fixtures.
const (
	VmstatPath   = "/proc/vmstat"
	MeminfoPath  = "/proc/meminfo"
	MountsPath   = "/proc/mounts"
	DevBlockPath = "/sys/dev/block"
)
