package fs

import (
	"io"
	"time"
)

/*
	Interface for the primitive functions staging and archiving perform
	on a filesystem.

	All paths accepted are RelPath types; the FS instance is constructed
	with an AbsolutePath, and all further operations are joined with that
	base path.  Paths which would go up out of the base path are rejected
	with ErrBreakout.
*/
type FS interface {
	BasePath() AbsolutePath

	OpenFile(path RelPath, flag int, perms Perms) (File, error)
	Mkdir(path RelPath, perms Perms) error
	Mklink(path RelPath, target string) error
	Chmod(path RelPath, perms Perms) error
	SetTimesNano(path RelPath, mtime time.Time) error
	RemoveAll(path RelPath) error

	Stat(path RelPath) (*Metadata, error)
	LStat(path RelPath) (*Metadata, error)
	ReadDirNames(path RelPath) ([]string, error)
	Readlink(path RelPath) (target string, isSymlink bool, err error)
}

type File interface {
	io.Reader
	io.Writer
	io.Closer
	Name() string
}
