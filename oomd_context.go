package oomd

import (
	"context"
	"errors"
	"fmt"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/docker/go-units"

	"github.com/lastweek/source-oomd/pkg/cgroupfs"
)

// OomdContext caches one CgroupContext per cgroup path. A single
// actor drives Refresh, RefreshMatching and Evict; the cache holds no
// lock. Read-only consumers may keep using CgroupContext values they
// obtained earlier while a refresh runs, because snapshots publish
// atomically, but the map-touching methods themselves are not safe
// to call concurrently.
type OomdContext struct {
	cgroups map[CgroupPath]*CgroupContext
}

// NewOomdContext returns an empty cache. The caller owns it and
// releases it with Close; there is no process-global instance.
func NewOomdContext() *OomdContext {
	return &OomdContext{cgroups: make(map[CgroupPath]*CgroupContext)}
}

// Refresh rebuilds the snapshot for one concrete cgroup path,
// creating the context on first sight. A cgroup whose directory no
// longer opens is evicted and the error returned; if the cgroup
// reappears later it starts over as a fresh context.
func (o *OomdContext) Refresh(ctx context.Context, path CgroupPath) (*CgroupContext, error) {
	if path.IsPattern() {
		return nil, fmt.Errorf("%w: %q is a pattern, use RefreshMatching", cerrdefs.ErrInvalidArgument, path.String())
	}
	c, ok := o.cgroups[path]
	if !ok {
		var err error
		c, err = newCgroupContext(path)
		if err != nil {
			return nil, err
		}
		o.cgroups[path] = c
	}
	if err := c.refresh(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		o.Evict(path)
		return nil, err
	}
	return c, nil
}

// RefreshMatching expands a wildcard path against the hierarchy,
// refreshes every match and prunes cached entries under the pattern
// whose directories vanished. Individual cgroups failing mid-walk are
// logged and skipped; only cancellation fails the pass. A pattern
// without wildcards behaves like Refresh plus the pruning.
func (o *OomdContext) RefreshMatching(ctx context.Context, pattern CgroupPath) ([]*CgroupContext, error) {
	matches, err := cgroupfs.Glob(pattern.Absolute(), true)
	if err != nil {
		return nil, err
	}
	live := make(map[CgroupPath]struct{}, len(matches))
	var out []*CgroupContext
	for _, abs := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := NewCgroupPath(pattern.Root(), cgroupfs.RemovePrefix(abs, pattern.Root()))
		if err != nil {
			log.G(ctx).WithError(err).WithField("path", abs).Warn("skipping unresolvable cgroup")
			continue
		}
		live[p] = struct{}{}
		c, err := o.Refresh(ctx, p)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			log.G(ctx).WithError(err).WithField("cgroup", p.String()).Debug("cgroup vanished during refresh")
			continue
		}
		out = append(out, c)
	}

	// Entries under the pattern that were not matched above are
	// cgroups that no longer exist; drop them so the cache tracks
	// the live hierarchy.
	for p := range o.cgroups {
		if pattern.matches(p) {
			if _, ok := live[p]; !ok {
				o.Evict(p)
			}
		}
	}
	return out, nil
}

// Get returns the cached context for path. It never creates one.
func (o *OomdContext) Get(path CgroupPath) (*CgroupContext, bool) {
	c, ok := o.cgroups[path]
	return c, ok
}

// All returns the live contexts in no particular order.
func (o *OomdContext) All() []*CgroupContext {
	all := make([]*CgroupContext, 0, len(o.cgroups))
	for _, c := range o.cgroups {
		all = append(all, c)
	}
	return all
}

// Evict drops the context for path and releases its directory
// handle. Unknown paths are a no-op.
func (o *OomdContext) Evict(path CgroupPath) {
	if c, ok := o.cgroups[path]; ok {
		c.close()
		delete(o.cgroups, path)
	}
}

// Close releases every held directory handle. The cache is empty
// afterwards but remains usable.
func (o *OomdContext) Close() error {
	for p := range o.cgroups {
		o.Evict(p)
	}
	return nil
}

// Dump logs one line per cached cgroup with its headline metrics.
// Meant for the moment a decision fires, so the state that led to it
// ends up in the logs.
func (o *OomdContext) Dump(ctx context.Context) {
	for _, c := range o.All() {
		d := c.Data()
		fields := log.Fields{"cgroup": c.Path().String()}
		if d.MemoryCurrent != nil {
			fields["mem"] = units.BytesSize(float64(*d.MemoryCurrent))
		}
		if d.SwapCurrent != nil {
			fields["swap"] = units.BytesSize(float64(*d.SwapCurrent))
		}
		if d.MemoryPSI != nil {
			fields["mem_pressure"] = fmt.Sprintf("%.2f/%.2f/%.2f", d.MemoryPSI.Full.Avg10, d.MemoryPSI.Full.Avg60, d.MemoryPSI.Full.Avg300)
		}
		if d.IOPSI != nil {
			fields["io_pressure"] = fmt.Sprintf("%.2f/%.2f/%.2f", d.IOPSI.Full.Avg10, d.IOPSI.Full.Avg60, d.IOPSI.Full.Avg300)
		}
		if d.Pids != nil {
			fields["pids"] = len(d.Pids)
		}
		log.G(ctx).WithFields(fields).Info("cgroup context")
	}
}

// SetCgroupData installs a prebuilt snapshot pair for path,
// validating the path the same way Refresh does. It exists so tests
// of decision logic can stage exact cgroup states without
// materializing every control file. Production refresh paths never
// call it.
func (o *OomdContext) SetCgroupData(path CgroupPath, data CgroupData, archive *CgroupArchivedData) (*CgroupContext, error) {
	c, ok := o.cgroups[path]
	if !ok {
		var err error
		c, err = newCgroupContext(path)
		if err != nil {
			return nil, err
		}
		o.cgroups[path] = c
	}
	c.data.Store(&data)
	if archive != nil {
		c.archive.Store(archive)
	}
	return c, nil
}
