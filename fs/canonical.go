package fs

import (
	"os"
	"path/filepath"

	. "github.com/warpfork/go-errcat"
)

/*
	Canonical returns the absolute form of p with every symlink resolved.

	Unlike filepath.EvalSymlinks, p need not exist: the longest existing
	prefix is resolved and the remaining segments are appended lexically.
	This is what lets a destination that has not been created yet be
	compared against its source.
*/
func Canonical(p string) (AbsolutePath, error) {
	abs, err := ParseAbsolutePath(p)
	if err != nil {
		return AbsolutePath{}, err
	}
	var tail []string
	cursor := abs
	for {
		resolved, err := filepath.EvalSymlinks(cursor.String())
		if err == nil {
			result := MustAbsolutePath(filepath.ToSlash(resolved))
			for i := len(tail) - 1; i >= 0; i-- {
				result = result.Join(MustRelPath(tail[i]))
			}
			return result, nil
		}
		if !os.IsNotExist(err) {
			return AbsolutePath{}, NormalizeIOError(err)
		}
		if cursor == (AbsolutePath{}) {
			return AbsolutePath{}, Errorf(ErrNotExists, "no part of %s exists", p)
		}
		tail = append(tail, cursor.Last())
		cursor = cursor.Dir()
	}
}
