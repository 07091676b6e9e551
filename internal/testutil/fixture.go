// Package testutil materializes control-file trees for tests. The
// canned trees carry fixed values that the test suites assert
// against, so changing a number here means chasing it through the
// tests that read it.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

// Node is one entry of a fixture tree.
type Node struct {
	name     string
	contents string
	children []Node
	isDir    bool
}

// File declares a regular file with the given contents.
func File(name, contents string) Node {
	return Node{name: name, contents: contents}
}

// Dir declares a directory.
func Dir(name string, children ...Node) Node {
	return Node{name: name, children: children, isDir: true}
}

// Materialize writes the nodes under root.
func Materialize(t *testing.T, root string, nodes ...Node) {
	t.Helper()
	for _, n := range nodes {
		n.write(t, root)
	}
}

func (n Node) write(t *testing.T, dir string) {
	t.Helper()
	path := filepath.Join(dir, n.name)
	if n.isDir {
		assert.NilError(t, os.Mkdir(path, 0o755))
		for _, c := range n.children {
			c.write(t, path)
		}
		return
	}
	assert.NilError(t, os.WriteFile(path, []byte(n.contents), 0o644))
}

// Pressure file contents in the formats the kernel has shipped.
const (
	UpstreamMemPressure = "some avg10=1.11 avg60=2.22 avg300=3.33 total=33\n" +
		"full avg10=4.44 avg60=5.55 avg300=6.66 total=66\n"
	UpstreamIOPressure = "some avg10=1.12 avg60=2.23 avg300=3.34 total=34\n" +
		"full avg10=4.45 avg60=5.56 avg300=6.67 total=67\n"
	// Pre-4.16 experimental format: aggr header, positional averages.
	LegacyMemPressure = "aggr 316016214\n" +
		"some 1.11 2.22 3.33\n" +
		"full 4.44 5.55 6.66\n"
	// Same, with trailing debug fields.
	LegacyDebugMemPressure = "aggr 316016214\n" +
		"some 1.11 2.22 3.33 581335246 51713841\n" +
		"full 4.44 5.55 6.66 417963320 4329031\n"
)

// MemoryStatContents has 29 rows; anon, file and pglazyfree are
// asserted exactly.
const MemoryStatContents = `anon 1294168064
file 3870687232
kernel_stack 730112
pagetables 5856256
percpu 800768
sock 122880
shmem 94273536
file_mapped 519055360
file_dirty 1594368
file_writeback 0
anon_thp 0
inactive_anon 1434799104
active_anon 9181184
inactive_file 1818339328
active_file 2033528832
unevictable 0
slab_reclaimable 146059264
slab_unreclaimable 19095552
slab 165154816
workingset_refault 412069
workingset_activate 212007
workingset_nodereclaim 0
pgfault 28229801
pgmajfault 8497
pgrefill 322799
pgscan 1072266
pgsteal 1020931
pgactivate 520509
pglazyfree 0
`

const IOStatContents = "1:10 rbytes=1111111 wbytes=2222222 rios=33 wios=44 dbytes=5555555555 dios=6\n" +
	"1:11 rbytes=2222222 wbytes=3333333 rios=44 wios=55 dbytes=6666666666 dios=7\n"

// MeminfoContents has 49 rows; SwapTotal, SwapFree and
// HugePages_Total are asserted exactly. The HugePages_* rows have no
// kB suffix, matching the kernel.
const MeminfoContents = `MemTotal:       16326236 kB
MemFree:         5549456 kB
MemAvailable:   10364486 kB
Buffers:          334140 kB
Cached:          4802144 kB
SwapCached:        12176 kB
Active:          4966440 kB
Inactive:        4574196 kB
Active(anon):    2369804 kB
Inactive(anon):  2545236 kB
Active(file):    2596636 kB
Inactive(file):  2028960 kB
Unevictable:      301056 kB
Mlocked:              48 kB
SwapTotal:       2097148 kB
SwapFree:        1097041 kB
Dirty:              1056 kB
Writeback:             0 kB
AnonPages:       5023220 kB
Mapped:           910040 kB
Shmem:            192848 kB
KReclaimable:     342232 kB
Slab:             485970 kB
SReclaimable:     342232 kB
SUnreclaim:       143738 kB
KernelStack:       18448 kB
PageTables:        54704 kB
NFS_Unstable:          0 kB
Bounce:                0 kB
WritebackTmp:          0 kB
CommitLimit:    10260264 kB
Committed_AS:   14272324 kB
VmallocTotal:   34359738367 kB
VmallocUsed:       59324 kB
VmallocChunk:          0 kB
Percpu:             4240 kB
HardwareCorrupted:     0 kB
AnonHugePages:         0 kB
ShmemHugePages:        0 kB
ShmemPmdMapped:        0 kB
FileHugePages:         0 kB
FilePmdMapped:         0 kB
HugePages_Total:       0
HugePages_Free:        0
HugePages_Rsvd:        0
HugePages_Surp:        0
Hugepagesize:       2048 kB
Hugetlb:               0 kB
DirectMap4k:      481112 kB
`

const VmstatContents = "first_key 12345\nsecond_key 678910\nthirdkey 999999\n"

const MountsContents = `sysfs /sys sysfs rw,seclabel,nosuid,nodev,noexec,relatime 0 0
proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
devtmpfs /dev devtmpfs rw,seclabel,nosuid,size=8016716k,nr_inodes=2004179,mode=755 0 0
cgroup2 /sys/fs/cgroup cgroup2 rw,seclabel,nosuid,nodev,noexec,relatime 0 0
/dev/vda3 / ext4 rw,seclabel,relatime 0 0
`

const MountsNoCgroup2Contents = `sysfs /sys sysfs rw,seclabel,nosuid,nodev,noexec,relatime 0 0
proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
/dev/vda3 / ext4 rw,seclabel,relatime 0 0
`

// FsTree materializes the plain-directory fixture and returns its
// root. The wildcard subdirectory backs the glob tests; dir2's
// children prove listings do not recurse.
func FsTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	Materialize(t, root,
		Dir("dir1",
			File("stuff", "hello world\nmy good man\n\n1\n")),
		Dir("dir2",
			Dir("dir21"),
			Dir("dir22")),
		Dir("dir3"),
		Dir("wildcard",
			Dir("dir1"),
			Dir("dir2"),
			Dir("different_dir"),
			File("file", "")),
		File("file1", ""),
		File("file2", ""),
		File("file3", ""),
		File("file4", ""),
	)
	return root
}

// CgroupTree materializes a cgroup-v2 style hierarchy with known
// values and returns its root.
func CgroupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	Materialize(t, root,
		File("cgroup.controllers", "cpu io memory pids\n"),
		File("cgroup.procs", "123\n"),
		File("cgroup.stat", "nr_descendants 5\nnr_dying_descendants 27\n"),
		File("cgroup.events", "populated 1\nfrozen 0\n"),
		File("memory.current", "987654321\n"),
		File("memory.high", "1000\n"),
		File("memory.high.tmp", "2000 0\n"),
		File("memory.low", "333333\n"),
		File("memory.max", "654\n"),
		File("memory.min", "666\n"),
		File("memory.swap.current", "321321\n"),
		File("memory.pressure", UpstreamMemPressure),
		File("io.pressure", UpstreamIOPressure),
		File("memory.stat", MemoryStatContents),
		File("io.stat", IOStatContents),
		Dir("slice1.slice",
			File("memory.oom.group", "1\n"),
			Dir("service1.service",
				File("memory.oom.group", "0\n"))),
		Dir("service1.service",
			File("cgroup.procs", "456\n789\n")),
		Dir("service2.service",
			File("memory.pressure", LegacyMemPressure)),
		Dir("service3.service",
			File("cgroup.events", "populated 0\nfrozen 0\n"),
			File("memory.pressure", LegacyDebugMemPressure)),
	)
	return root
}

// DeviceTree materializes sysfs-style rotational flags: 1:0 is an
// SSD, 1:1 an HDD, 1:2 garbage.
func DeviceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	Materialize(t, root,
		Dir("1:0", Dir("queue", File("rotational", "0"))),
		Dir("1:1", Dir("queue", File("rotational", "1"))),
		Dir("1:2", Dir("queue", File("rotational", "blah"))),
	)
	return root
}

// VmstatFile writes the vmstat fixture and returns its path.
func VmstatFile(t *testing.T) string {
	return writeFixtureFile(t, "vmstat", VmstatContents)
}

// MeminfoFile writes the meminfo fixture and returns its path.
func MeminfoFile(t *testing.T) string {
	return writeFixtureFile(t, "meminfo", MeminfoContents)
}

// MountsFile writes the mounts fixture and returns its path.
func MountsFile(t *testing.T) string {
	return writeFixtureFile(t, "mounts", MountsContents)
}

func writeFixtureFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NilError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}
