package cgroupfs

import "path/filepath"

// DeviceType classifies a block device by its rotational flag.
type DeviceType int

const (
	DeviceSSD DeviceType = iota
	DeviceHDD
)

func (t DeviceType) String() string {
	if t == DeviceHDD {
		return "hdd"
	}
	return "ssd"
}

const (
	deviceQueueDir       = "queue"
	deviceRotationalFile = "rotational"
)

// GetDeviceType reads <devRoot>/<maj:min>/queue/rotational and maps
// 0 to SSD and 1 to HDD. devRoot is DevBlockPath on a live host.
func GetDeviceType(devID, devRoot string) (DeviceType, error) {
	path := filepath.Join(devRoot, devID, deviceQueueDir, deviceRotationalFile)
	lines, err := ReadLines(path)
	if err != nil {
		return 0, err
	}
	if len(lines) > 0 {
		switch lines[0] {
		case "0":
			return DeviceSSD, nil
		case "1":
			return DeviceHDD, nil
		}
	}
	return 0, badControlFile(path)
}
