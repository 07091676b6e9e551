package cgroupfs

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/lastweek/source-oomd/internal/testutil"
)

func openCgroupFixture(t *testing.T) *DirFd {
	t.Helper()
	d, err := OpenDir(testutil.CgroupTree(t))
	assert.NilError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func openTmpCgroup(t *testing.T, files ...testutil.Node) *DirFd {
	t.Helper()
	root := t.TempDir()
	testutil.Materialize(t, root, files...)
	d, err := OpenDir(root)
	assert.NilError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestReadScalars(t *testing.T) {
	d := openCgroupFixture(t)

	for _, tc := range []struct {
		file string
		read func(*DirFd) (uint64, error)
		want uint64
	}{
		{MemCurrentFile, ReadMemoryCurrent, 987654321},
		{MemMinFile, ReadMemoryMin, 666},
		{MemLowFile, ReadMemoryLow, 333333},
		{MemHighFile, ReadMemoryHigh, 1000},
		{MemHighTmpFile, ReadMemoryHighTmp, 2000},
		{MemMaxFile, ReadMemoryMax, 654},
		{MemSwapCurrentFile, ReadSwapCurrent, 321321},
	} {
		got, err := tc.read(d)
		assert.NilError(t, err, tc.file)
		assert.Check(t, is.Equal(got, tc.want), tc.file)
	}
}

func TestReadScalarMax(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(MemHighFile, "max\n"))

	got, err := ReadMemoryHigh(d)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(got, uint64(math.MaxUint64)))
}

func TestReadScalarMalformed(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(MemCurrentFile, "-1\n"))

	_, err := ReadMemoryCurrent(d)
	assert.Check(t, IsBadControlFile(err))
	assert.Check(t, is.Error(err, filepath.Join(d.Name(), MemCurrentFile)+": invalid format"))
}

func TestReadScalarEmpty(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(MemCurrentFile, ""))

	_, err := ReadMemoryCurrent(d)
	assert.Check(t, IsBadControlFile(err))
}

func TestReadScalarMissing(t *testing.T) {
	d, err := OpenDir(t.TempDir())
	assert.NilError(t, err)
	defer d.Close()

	_, err = ReadMemoryCurrent(d)
	assert.Check(t, IsNotFound(err))
}

func TestReadControllers(t *testing.T) {
	d := openCgroupFixture(t)

	ctrls, err := ReadControllers(d)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(ctrls, []string{"cpu", "io", "memory", "pids"}))
}

func TestReadControllersDuplicates(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(CgroupControllersFile, "memory io\nio memory cpu\n"))

	ctrls, err := ReadControllers(d)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(ctrls, []string{"cpu", "io", "memory"}))
}

func TestReadPids(t *testing.T) {
	d := openCgroupFixture(t)

	pids, err := ReadPids(d)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(pids, []int{123}))

	child, err := d.OpenDirAt("service1.service")
	assert.NilError(t, err)
	defer child.Close()

	pids, err = ReadPids(child)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(pids, []int{456, 789}))
}

func TestReadPidsEmpty(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(CgroupProcsFile, ""))

	pids, err := ReadPids(d)
	assert.NilError(t, err)
	assert.Check(t, pids != nil)
	assert.Check(t, is.Len(pids, 0))
}

func TestReadPidsMissing(t *testing.T) {
	d := openCgroupFixture(t)

	slice, err := d.OpenDirAt("slice1.slice")
	assert.NilError(t, err)
	defer slice.Close()

	_, err = ReadPids(slice)
	assert.Check(t, IsNotFound(err))
}

func TestReadPidsMalformed(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(CgroupProcsFile, "123\nabc\n"))

	_, err := ReadPids(d)
	assert.Check(t, IsBadControlFile(err))
}

func TestReadIsPopulated(t *testing.T) {
	d := openCgroupFixture(t)

	populated, err := ReadIsPopulated(d)
	assert.NilError(t, err)
	assert.Check(t, populated)

	idle, err := d.OpenDirAt("service3.service")
	assert.NilError(t, err)
	defer idle.Close()

	populated, err = ReadIsPopulated(idle)
	assert.NilError(t, err)
	assert.Check(t, !populated)
}

func TestReadIsPopulatedMalformed(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(CgroupEventsFile, "populated 2\nfrozen 0\n"))

	_, err := ReadIsPopulated(d)
	assert.Check(t, IsBadControlFile(err))

	// a populated row must exist at all
	d = openTmpCgroup(t, testutil.File(CgroupEventsFile, "frozen 0\n"))

	_, err = ReadIsPopulated(d)
	assert.Check(t, IsBadControlFile(err))
}

func TestReadCgroupStat(t *testing.T) {
	d := openCgroupFixture(t)

	kv, err := ReadCgroupStat(d)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(kv["nr_descendants"], uint64(5)))
	assert.Check(t, is.Equal(kv["nr_dying_descendants"], uint64(27)))

	n, err := ReadNrDyingDescendants(d)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(n, uint64(27)))
}

func TestReadMemoryStat(t *testing.T) {
	d := openCgroupFixture(t)

	kv, err := ReadMemoryStat(d)
	assert.NilError(t, err)
	assert.Check(t, is.Len(kv, 29))
	assert.Check(t, is.Equal(kv["anon"], uint64(1294168064)))
	assert.Check(t, is.Equal(kv["file"], uint64(3870687232)))
	assert.Check(t, is.Equal(kv["pglazyfree"], uint64(0)))
	// probing for a key this kernel does not report is not an error
	assert.Check(t, is.Equal(kv["zswap"], uint64(0)))
}

func TestReadIOStat(t *testing.T) {
	d := openCgroupFixture(t)

	stats, err := ReadIOStat(d)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(stats, []IOStat{
		{DevID: "1:10", RBytes: 1111111, WBytes: 2222222, RIOs: 33, WIOs: 44, DBytes: 5555555555, DIOs: 6},
		{DevID: "1:11", RBytes: 2222222, WBytes: 3333333, RIOs: 44, WIOs: 55, DBytes: 6666666666, DIOs: 7},
	}))
}

func TestReadIOStatEmpty(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(IOStatFile, ""))

	stats, err := ReadIOStat(d)
	assert.NilError(t, err)
	assert.Check(t, stats != nil)
	assert.Check(t, is.Len(stats, 0))
}

// Kernels report only the keys they account; newer ones may add keys
// this package has no field for. Neither is an error.
func TestReadIOStatSparse(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(IOStatFile, "1:10 rbytes=5\n1:11 rbytes=5 foo=7\n"))

	stats, err := ReadIOStat(d)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(stats, []IOStat{
		{DevID: "1:10", RBytes: 5},
		{DevID: "1:11", RBytes: 5},
	}))
}

func TestReadIOStatMalformed(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(IOStatFile, "1:10 rbytes=zz\n"))

	_, err := ReadIOStat(d)
	assert.Check(t, IsBadControlFile(err))
}

func TestReadMemoryOomGroup(t *testing.T) {
	d := openCgroupFixture(t)

	slice, err := d.OpenDirAt("slice1.slice")
	assert.NilError(t, err)
	defer slice.Close()

	og, err := ReadMemoryOomGroup(slice)
	assert.NilError(t, err)
	assert.Check(t, og)

	svc, err := slice.OpenDirAt("service1.service")
	assert.NilError(t, err)
	defer svc.Close()

	og, err = ReadMemoryOomGroup(svc)
	assert.NilError(t, err)
	assert.Check(t, !og)
}

func TestReadMemoryOomGroupMalformed(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(MemOomGroupFile, "2\n"))

	_, err := ReadMemoryOomGroup(d)
	assert.Check(t, IsBadControlFile(err))
}

func TestWriteMemoryHigh(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(MemHighFile, ""))

	assert.NilError(t, WriteMemoryHigh(d, 54321))

	got, err := ReadMemoryHigh(d)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(got, uint64(54321)))
}

func TestWriteMemoryHighMax(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(MemHighFile, ""))

	assert.NilError(t, WriteMemoryHigh(d, math.MaxUint64))

	b, err := os.ReadFile(filepath.Join(d.Name(), MemHighFile))
	assert.NilError(t, err)
	assert.Check(t, is.Equal(string(b), "max"))

	got, err := ReadMemoryHigh(d)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(got, uint64(math.MaxUint64)))
}

func TestWriteMemoryHighTmp(t *testing.T) {
	d := openTmpCgroup(t, testutil.File(MemHighTmpFile, ""))

	assert.NilError(t, WriteMemoryHighTmp(d, 54321, 400*time.Millisecond))

	b, err := os.ReadFile(filepath.Join(d.Name(), MemHighTmpFile))
	assert.NilError(t, err)
	assert.Check(t, is.Equal(string(b), "54321 400000"))

	got, err := ReadMemoryHighTmp(d)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(got, uint64(54321)))
}
