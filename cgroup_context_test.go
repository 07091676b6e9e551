package oomd

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/lastweek/source-oomd/internal/testutil"
)

func u64(v uint64) *uint64 { return &v }

func TestMemoryGrowth(t *testing.T) {
	o := NewOomdContext()
	defer o.Close()
	p := mustPath(t, testutil.CgroupTree(t), "")

	old := CgroupArchivedData{
		MemoryCurrent: u64(1000),
		MemoryStat:    map[string]uint64{"anon": 1500},
	}
	c, err := o.SetCgroupData(p, CgroupData{
		MemoryCurrent: u64(1500),
		MemoryStat:    map[string]uint64{"anon": 1200},
	}, &old)
	assert.NilError(t, err)

	growth, ok := c.MemoryGrowth()
	assert.Check(t, ok)
	assert.Check(t, is.Equal(growth, 0.5))

	delta, ok := c.MemoryStatDelta("anon")
	assert.Check(t, ok)
	assert.Check(t, is.Equal(delta, int64(-300)))

	// probing a key neither snapshot carries is a zero delta, not an error
	delta, ok = c.MemoryStatDelta("does_not_exist")
	assert.Check(t, ok)
	assert.Check(t, is.Equal(delta, int64(0)))
}

func TestMemoryGrowthNoArchive(t *testing.T) {
	o := NewOomdContext()
	defer o.Close()
	p := mustPath(t, testutil.CgroupTree(t), "")

	c, err := o.SetCgroupData(p, CgroupData{
		MemoryCurrent: u64(1500),
		MemoryStat:    map[string]uint64{"anon": 1200},
	}, nil)
	assert.NilError(t, err)

	_, ok := c.MemoryGrowth()
	assert.Check(t, !ok)
	_, ok = c.MemoryStatDelta("anon")
	assert.Check(t, !ok)
}

func TestMemoryGrowthZeroBase(t *testing.T) {
	o := NewOomdContext()
	defer o.Close()
	p := mustPath(t, testutil.CgroupTree(t), "")

	old := CgroupArchivedData{MemoryCurrent: u64(0)}
	c, err := o.SetCgroupData(p, CgroupData{MemoryCurrent: u64(1500)}, &old)
	assert.NilError(t, err)

	_, ok := c.MemoryGrowth()
	assert.Check(t, !ok)
}
