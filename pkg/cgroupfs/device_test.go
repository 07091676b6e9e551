package cgroupfs

import (
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/lastweek/source-oomd/internal/testutil"
)

func TestGetDeviceType(t *testing.T) {
	root := testutil.DeviceTree(t)

	typ, err := GetDeviceType("1:0", root)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(typ, DeviceSSD))

	typ, err = GetDeviceType("1:1", root)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(typ, DeviceHDD))
}

func TestGetDeviceTypeMalformed(t *testing.T) {
	root := testutil.DeviceTree(t)

	_, err := GetDeviceType("1:2", root)
	assert.Check(t, IsBadControlFile(err))
	assert.Check(t, is.Error(err, filepath.Join(root, "1:2", "queue", "rotational")+": invalid format"))
}

func TestGetDeviceTypeMissing(t *testing.T) {
	_, err := GetDeviceType("9:9", testutil.DeviceTree(t))
	assert.Check(t, IsNotFound(err))
}
