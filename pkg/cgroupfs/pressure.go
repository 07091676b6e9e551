package cgroupfs

import (
	"errors"
	"strconv"
	"strings"
)

// PressureType selects a PSI severity line: "some" counts wall time
// where at least one task stalled on the resource, "full" counts
// wall time where no task made progress at all.
type PressureType int

const (
	PressureSome PressureType = iota
	PressureFull
)

func (t PressureType) String() string {
	if t == PressureFull {
		return "full"
	}
	return "some"
}

// ResourcePressure is one severity of a PSI file: percent of wall
// time stalled, averaged over 10s, 60s and 300s windows.
type ResourcePressure struct {
	Avg10  float64
	Avg60  float64
	Avg300 float64
}

// PSIStats carries both severities of one pressure file.
type PSIStats struct {
	Some ResourcePressure
	Full ResourcePressure
}

// ReadMemoryPressure returns one severity of memory.pressure.
func ReadMemoryPressure(d *DirFd, typ PressureType) (ResourcePressure, error) {
	return readPressureAt(d, MemPressureFile, typ)
}

// ReadIOPressure returns one severity of io.pressure.
func ReadIOPressure(d *DirFd, typ PressureType) (ResourcePressure, error) {
	return readPressureAt(d, IOPressureFile, typ)
}

// ReadMemoryPSI returns both severities of memory.pressure from a
// single read.
func ReadMemoryPSI(d *DirFd) (PSIStats, error) {
	return readPSIAt(d, MemPressureFile)
}

// ReadIOPSI returns both severities of io.pressure from a single
// read.
func ReadIOPSI(d *DirFd) (PSIStats, error) {
	return readPSIAt(d, IOPressureFile)
}

func readPressureAt(d *DirFd, name string, typ PressureType) (ResourcePressure, error) {
	lines, err := d.ReadLines(name)
	if err != nil {
		return ResourcePressure{}, err
	}
	want := typ.String()
	for _, line := range lines {
		label, rp, err := parsePressureLine(line)
		if err != nil {
			return ResourcePressure{}, badControlFile(d.join(name))
		}
		if label == want {
			return rp, nil
		}
	}
	return ResourcePressure{}, badControlFile(d.join(name))
}

func readPSIAt(d *DirFd, name string) (PSIStats, error) {
	lines, err := d.ReadLines(name)
	if err != nil {
		return PSIStats{}, err
	}
	var st PSIStats
	var some, full bool
	for _, line := range lines {
		label, rp, err := parsePressureLine(line)
		if err != nil {
			return PSIStats{}, badControlFile(d.join(name))
		}
		switch label {
		case "some":
			st.Some, some = rp, true
		case "full":
			st.Full, full = rp, true
		}
	}
	if !some || !full {
		return PSIStats{}, badControlFile(d.join(name))
	}
	return st, nil
}

var errPressureLine = errors.New("unparsable pressure line")

// parsePressureLine decodes one PSI line, keyed off its severity
// label so values can never be attributed to the wrong severity.
// Two kernel formats exist:
//
//	some avg10=1.11 avg60=2.22 avg300=3.33 total=33
//	some 1.11 2.22 3.33 [debug fields...]
//
// The second is the pre-4.16 experimental layout; its files carry an
// extra "aggr" header line and sometimes trailing debug fields, both
// ignored. Lines without a severity label report label "" and no
// error; unknown labeled variants fail loudly rather than being
// guessed at.
func parsePressureLine(line string) (string, ResourcePressure, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || (fields[0] != "some" && fields[0] != "full") {
		return "", ResourcePressure{}, nil
	}
	label := fields[0]
	if len(fields) < 4 {
		return "", ResourcePressure{}, errPressureLine
	}

	var rp ResourcePressure
	if strings.Contains(fields[1], "=") {
		var got10, got60, got300 bool
		for _, f := range fields[1:] {
			k, v, ok := strings.Cut(f, "=")
			if !ok {
				return "", ResourcePressure{}, errPressureLine
			}
			var dst *float64
			switch k {
			case "avg10":
				dst, got10 = &rp.Avg10, true
			case "avg60":
				dst, got60 = &rp.Avg60, true
			case "avg300":
				dst, got300 = &rp.Avg300, true
			default:
				// total= and future fields.
				continue
			}
			avg, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return "", ResourcePressure{}, errPressureLine
			}
			*dst = avg
		}
		// Each window must appear by name; repeated keys do not
		// stand in for missing ones.
		if !got10 || !got60 || !got300 {
			return "", ResourcePressure{}, errPressureLine
		}
		return label, rp, nil
	}

	for i, dst := range []*float64{&rp.Avg10, &rp.Avg60, &rp.Avg300} {
		avg, err := strconv.ParseFloat(fields[1+i], 64)
		if err != nil {
			return "", ResourcePressure{}, errPressureLine
		}
		*dst = avg
	}
	return label, rp, nil
}
