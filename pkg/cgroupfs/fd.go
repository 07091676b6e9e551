package cgroupfs

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Fd is an open control file.
type Fd struct {
	*os.File
}

// DirFd is an open directory, typically a cgroup. Control files are
// opened relative to it with openat(2), so reads stay coupled to the
// directory that was resolved, not to whatever its path names later.
type DirFd struct {
	*os.File
}

// Open opens the file at path read-only.
func Open(path string) (*Fd, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, classify(err)
	}
	return &Fd{f}, nil
}

// OpenDir opens the directory at path. Opening anything else fails
// with ENOTDIR.
func OpenDir(path string) (*DirFd, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, classify(&os.PathError{Op: "open", Path: path, Err: err})
	}
	return &DirFd{os.NewFile(uintptr(fd), path)}, nil
}

// OpenAt opens the named control file relative to d, read-only.
func (d *DirFd) OpenAt(name string) (*Fd, error) {
	f, err := d.openat(name, unix.O_RDONLY)
	if err != nil {
		return nil, err
	}
	return &Fd{f}, nil
}

// OpenDirAt opens the named subdirectory relative to d.
func (d *DirFd) OpenDirAt(name string) (*DirFd, error) {
	f, err := d.openat(name, unix.O_RDONLY|unix.O_DIRECTORY)
	if err != nil {
		return nil, err
	}
	return &DirFd{f}, nil
}

func (d *DirFd) openat(name string, flags int) (*os.File, error) {
	fd, err := unix.Openat(int(d.Fd()), name, flags|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, classify(&os.PathError{Op: "openat", Path: d.join(name), Err: err})
	}
	return os.NewFile(uintptr(fd), d.join(name)), nil
}

// join names a file under d for error messages.
func (d *DirFd) join(name string) string {
	return filepath.Join(d.Name(), name)
}

// ReadAll reads the remaining contents of the file.
func (f *Fd) ReadAll() ([]byte, error) {
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

// Lines reads the rest of the file split into lines. A trailing
// newline does not produce a final empty line; interior empty lines
// are preserved.
func (f *Fd) Lines() ([]string, error) {
	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, classify(err)
	}
	return lines, nil
}

// ReadLines reads the file at path as lines.
func ReadLines(path string) ([]string, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Lines()
}

// ReadLines reads the named control file relative to d as lines.
func (d *DirFd) ReadLines(name string) ([]string, error) {
	f, err := d.OpenAt(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Lines()
}

// WriteFile writes contents to the named control file relative to d.
// The file must already exist: control files are created by the
// kernel, never by us.
func (d *DirFd) WriteFile(name, contents string) error {
	f, err := d.openat(name, unix.O_WRONLY|unix.O_TRUNC)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(contents)
	cerr := f.Close()
	if werr != nil {
		return classify(werr)
	}
	return classify(cerr)
}
