package fs

import (
	"os"
	"syscall"

	. "github.com/warpfork/go-errcat"
)

type ErrorCategory string

const (
	ErrIO          = ErrorCategory("fs-io-error")        // Catchall for errors from the host filesystem we have no better name for.
	ErrInvalidPath = ErrorCategory("fs-invalid-path")    // A path string was empty, or absolute where relative was required.
	ErrNotExists   = ErrorCategory("fs-not-exists")      // Returned by stat, open, readlink and friends for missing paths.
	ErrExists      = ErrorCategory("fs-already-exists")  // Returned by mkdir, mklink and exclusive opens when the path is taken.
	ErrNotDir      = ErrorCategory("fs-not-dir")         // A path segment that had to be a directory was something else.
	ErrPermission  = ErrorCategory("fs-permission")      // The host refused us access.
	ErrBreakout    = ErrorCategory("fs-breakout")        // A path would leave the filesystem base path.
	ErrRecursion   = ErrorCategory("fs-recursion")       // Symlinks loop while resolving a path.
)

// NormalizeIOError maps errors from the os and syscall packages onto
// the categories above.  Errors that already carry a category pass through.
func NormalizeIOError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(Error); ok {
		return err
	}
	switch {
	case os.IsNotExist(err):
		return Errorf(ErrNotExists, "%s", err)
	case os.IsExist(err):
		return Errorf(ErrExists, "%s", err)
	case os.IsPermission(err):
		return Errorf(ErrPermission, "%s", err)
	}
	if e2, ok := err.(*os.PathError); ok {
		switch e2.Err {
		case syscall.ENOTDIR:
			return Errorf(ErrNotDir, "%s", err)
		case syscall.ELOOP:
			return Errorf(ErrRecursion, "%s", err)
		}
	}
	if e2, ok := err.(*os.LinkError); ok && e2.Err == syscall.ENOTDIR {
		return Errorf(ErrNotDir, "%s", err)
	}
	return Errorf(ErrIO, "%s", err)
}
