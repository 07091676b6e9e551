package cgroupfs

import (
	"errors"
	"fmt"
	"io/fs"

	cerrdefs "github.com/containerd/errdefs"
)

// BadControlFileError reports a control file whose contents do not
// match any format this package understands. Path names the offending
// file; the message is "<path>: <reason>".
type BadControlFileError struct {
	Path   string
	Reason string
}

func (e *BadControlFileError) Error() string {
	return e.Path + ": " + e.Reason
}

func badControlFile(path string) error {
	return &BadControlFileError{Path: path, Reason: "invalid format"}
}

// IsBadControlFile reports whether err means a control file existed
// but could not be decoded.
func IsBadControlFile(err error) bool {
	var bcf *BadControlFileError
	return errors.As(err, &bcf)
}

// IsNotFound reports whether err was caused by an absent file or
// directory.
func IsNotFound(err error) bool {
	return cerrdefs.IsNotFound(err) || errors.Is(err, fs.ErrNotExist)
}

// classify attaches the matching errdefs class to a syscall-level
// error. The underlying error stays in the chain, so errno checks
// with errors.Is keep working.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", cerrdefs.ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", cerrdefs.ErrPermissionDenied, err)
	default:
		return err
	}
}
