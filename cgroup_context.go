package oomd

import (
	"context"
	"sync/atomic"

	"github.com/containerd/log"

	"github.com/lastweek/source-oomd/pkg/cgroupfs"
)

// CgroupData is one snapshot of a cgroup's control files. Every
// field is independently optional: nil means the kernel did not
// expose the file or it failed to decode, which is not the same as
// zero. A non-nil empty Pids slice is an empty cgroup; a non-nil
// empty IOStat slice is a cgroup with no attributed devices.
type CgroupData struct {
	MemoryCurrent *uint64
	MemoryMin     *uint64
	MemoryLow     *uint64
	MemoryHigh    *uint64
	MemoryHighTmp *uint64
	MemoryMax     *uint64
	SwapCurrent   *uint64

	MemoryPSI *cgroupfs.PSIStats
	IOPSI     *cgroupfs.PSIStats

	MemoryStat map[string]uint64
	IOStat     []cgroupfs.IOStat

	Controllers []string
	Pids        []int

	IsPopulated        *bool
	OomGroup           *bool
	NrDyingDescendants *uint64
}

// CgroupArchivedData is the previous generation of a snapshot,
// retained so consumers can compute rates across refreshes.
type CgroupArchivedData = CgroupData

// CgroupContext pairs one cgroup with its current and previous
// snapshots. Snapshots are immutable once published and the pointers
// swing atomically, so a read-only consumer racing the refreshing
// actor always observes a complete generation.
type CgroupContext struct {
	path    CgroupPath
	dir     *cgroupfs.DirFd
	data    atomic.Pointer[CgroupData]
	archive atomic.Pointer[CgroupArchivedData]
}

// newCgroupContext opens the cgroup directory and installs an empty
// snapshot pair. A path that does not resolve to a directory yields
// no context.
func newCgroupContext(p CgroupPath) (*CgroupContext, error) {
	dir, err := cgroupfs.OpenDir(p.Absolute())
	if err != nil {
		return nil, err
	}
	c := &CgroupContext{path: p, dir: dir}
	c.data.Store(&CgroupData{})
	return c, nil
}

// Path returns the cgroup this context tracks.
func (c *CgroupContext) Path() CgroupPath { return c.path }

// Data returns the last published snapshot. It is never nil; before
// the first refresh every field is absent.
func (c *CgroupContext) Data() *CgroupData { return c.data.Load() }

// Archive returns the snapshot demoted by the last refresh, or nil
// if no refresh has completed yet.
func (c *CgroupContext) Archive() *CgroupArchivedData { return c.archive.Load() }

// refresh reopens the cgroup directory, rebuilds the snapshot and
// publishes it, demoting the previous one into the archive. The
// directory failing to open means the cgroup is gone; the caller
// evicts on that. Cancellation aborts before anything is published.
func (c *CgroupContext) refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := cgroupfs.OpenDir(c.path.Absolute())
	if err != nil {
		return err
	}
	if c.dir != nil {
		c.dir.Close()
	}
	c.dir = dir

	data := collectCgroupData(ctx, dir)
	if err := ctx.Err(); err != nil {
		return err
	}
	c.archive.Store(c.data.Load())
	c.data.Store(data)
	return nil
}

func (c *CgroupContext) close() {
	if c.dir != nil {
		c.dir.Close()
		c.dir = nil
	}
}

// collectCgroupData reads every control file through dir, all
// relative opens against the one handle. An absent file leaves its
// field nil; a malformed or unreadable one does the same but is
// logged, so a single broken file cannot starve the rest of the
// snapshot.
func collectCgroupData(ctx context.Context, dir *cgroupfs.DirFd) *CgroupData {
	d := &CgroupData{}

	scalar := func(dst **uint64, file string, read func(*cgroupfs.DirFd) (uint64, error)) {
		v, err := read(dir)
		if err != nil {
			reportFieldError(ctx, file, err)
			return
		}
		*dst = &v
	}
	scalar(&d.MemoryCurrent, cgroupfs.MemCurrentFile, cgroupfs.ReadMemoryCurrent)
	scalar(&d.MemoryMin, cgroupfs.MemMinFile, cgroupfs.ReadMemoryMin)
	scalar(&d.MemoryLow, cgroupfs.MemLowFile, cgroupfs.ReadMemoryLow)
	scalar(&d.MemoryHigh, cgroupfs.MemHighFile, cgroupfs.ReadMemoryHigh)
	scalar(&d.MemoryHighTmp, cgroupfs.MemHighTmpFile, cgroupfs.ReadMemoryHighTmp)
	scalar(&d.MemoryMax, cgroupfs.MemMaxFile, cgroupfs.ReadMemoryMax)
	scalar(&d.SwapCurrent, cgroupfs.MemSwapCurrentFile, cgroupfs.ReadSwapCurrent)
	scalar(&d.NrDyingDescendants, cgroupfs.CgroupStatFile, cgroupfs.ReadNrDyingDescendants)

	if psi, err := cgroupfs.ReadMemoryPSI(dir); err == nil {
		d.MemoryPSI = &psi
	} else {
		reportFieldError(ctx, cgroupfs.MemPressureFile, err)
	}
	if psi, err := cgroupfs.ReadIOPSI(dir); err == nil {
		d.IOPSI = &psi
	} else {
		reportFieldError(ctx, cgroupfs.IOPressureFile, err)
	}
	if kv, err := cgroupfs.ReadMemoryStat(dir); err == nil {
		d.MemoryStat = kv
	} else {
		reportFieldError(ctx, cgroupfs.MemStatFile, err)
	}
	if st, err := cgroupfs.ReadIOStat(dir); err == nil {
		d.IOStat = st
	} else {
		reportFieldError(ctx, cgroupfs.IOStatFile, err)
	}
	if ctrls, err := cgroupfs.ReadControllers(dir); err == nil {
		d.Controllers = ctrls
	} else {
		reportFieldError(ctx, cgroupfs.CgroupControllersFile, err)
	}
	if pids, err := cgroupfs.ReadPids(dir); err == nil {
		d.Pids = pids
	} else {
		reportFieldError(ctx, cgroupfs.CgroupProcsFile, err)
	}
	if b, err := cgroupfs.ReadIsPopulated(dir); err == nil {
		d.IsPopulated = &b
	} else {
		reportFieldError(ctx, cgroupfs.CgroupEventsFile, err)
	}
	if b, err := cgroupfs.ReadMemoryOomGroup(dir); err == nil {
		d.OomGroup = &b
	} else {
		reportFieldError(ctx, cgroupfs.MemOomGroupFile, err)
	}
	return d
}

// reportFieldError logs a per-field read failure. Absent files are
// normal (not every controller is enabled everywhere) and stay
// quiet.
func reportFieldError(ctx context.Context, file string, err error) {
	if cgroupfs.IsNotFound(err) {
		return
	}
	log.G(ctx).WithError(err).WithField("file", file).Warn("failed to read control file")
}

// MemoryGrowth returns the relative growth of memory.current since
// the archived snapshot: (current-previous)/previous. It reports
// false when either generation lacks the value or the previous one
// is zero.
func (c *CgroupContext) MemoryGrowth() (float64, bool) {
	cur, old := c.Data(), c.Archive()
	if old == nil || cur.MemoryCurrent == nil || old.MemoryCurrent == nil || *old.MemoryCurrent == 0 {
		return 0, false
	}
	prev := float64(*old.MemoryCurrent)
	return (float64(*cur.MemoryCurrent) - prev) / prev, true
}

// MemoryStatDelta returns the change of one memory.stat counter
// since the archived snapshot. Keys missing from a present map count
// as zero; the delta is signed because counters like anon shrink
// under reclaim.
func (c *CgroupContext) MemoryStatDelta(key string) (int64, bool) {
	cur, old := c.Data(), c.Archive()
	if old == nil || cur.MemoryStat == nil || old.MemoryStat == nil {
		return 0, false
	}
	return int64(cur.MemoryStat[key]) - int64(old.MemoryStat[key]), true
}
