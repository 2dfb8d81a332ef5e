package osfs

import (
	"os"
	"syscall"
	"time"

	. "github.com/warpfork/go-errcat"
	"golang.org/x/sys/unix"

	"github.com/Maheshkerai/update-generator/fs"
)

func New(basePath fs.AbsolutePath) fs.FS {
	return &osFS{basePath}
}

type osFS struct {
	basePath fs.AbsolutePath
}

func (afs *osFS) BasePath() fs.AbsolutePath {
	return afs.basePath
}

func (afs *osFS) OpenFile(path fs.RelPath, flag int, perms fs.Perms) (fs.File, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(rpath, flag, permsToOs(perms))
	if err != nil {
		return nil, fs.NormalizeIOError(err)
	}
	return f, nil
}

func (afs *osFS) Mkdir(path fs.RelPath, perms fs.Perms) error {
	rpath, err := afs.realpath(path)
	if err != nil {
		return err
	}
	return fs.NormalizeIOError(os.Mkdir(rpath, permsToOs(perms)))
}

func (afs *osFS) Mklink(path fs.RelPath, target string) error {
	rpath, err := afs.realpath(path)
	if err != nil {
		return err
	}
	return fs.NormalizeIOError(os.Symlink(target, rpath))
}

func (afs *osFS) Chmod(path fs.RelPath, perms fs.Perms) error {
	rpath, err := afs.realpath(path)
	if err != nil {
		return err
	}
	return fs.NormalizeIOError(os.Chmod(rpath, permsToOs(perms)))
}

// SetTimesNano sets mtime (and atime, to the same value) without following
// a symlink in the last path segment.  The stdlib only has `os.Chtimes`,
// which always follows links.
func (afs *osFS) SetTimesNano(path fs.RelPath, mtime time.Time) error {
	rpath, err := afs.realpath(path)
	if err != nil {
		return err
	}
	ts := unix.NsecToTimespec(mtime.UnixNano())
	err = unix.UtimesNanoAt(unix.AT_FDCWD, rpath, []unix.Timespec{ts, ts}, unix.AT_SYMLINK_NOFOLLOW)
	return fs.NormalizeIOError(err)
}

func (afs *osFS) RemoveAll(path fs.RelPath) error {
	rpath, err := afs.realpath(path)
	if err != nil {
		return err
	}
	return fs.NormalizeIOError(os.RemoveAll(rpath))
}

func (afs *osFS) Stat(path fs.RelPath) (*fs.Metadata, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(rpath)
	if err != nil {
		return nil, fs.NormalizeIOError(err)
	}
	return afs.convertFileinfo(path, rpath, fi)
}

func (afs *osFS) LStat(path fs.RelPath) (*fs.Metadata, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Lstat(rpath)
	if err != nil {
		return nil, fs.NormalizeIOError(err)
	}
	return afs.convertFileinfo(path, rpath, fi)
}

func (afs *osFS) convertFileinfo(path fs.RelPath, rpath string, fi os.FileInfo) (*fs.Metadata, error) {
	fmeta := &fs.Metadata{
		Name:  path,
		Mtime: fi.ModTime(),
	}

	fm := fi.Mode()
	switch fm & (os.ModeType | os.ModeCharDevice) {
	case 0:
		fmeta.Type = fs.Type_File
	case os.ModeDir:
		fmeta.Type = fs.Type_Dir
	case os.ModeSymlink:
		fmeta.Type = fs.Type_Symlink
		// It's an extra syscall, but we always want the target.
		target, _, err := readlink(rpath)
		if err != nil {
			return nil, fs.NormalizeIOError(err)
		}
		fmeta.Linkname = target
	case os.ModeNamedPipe:
		fmeta.Type = fs.Type_NamedPipe
	case os.ModeSocket:
		fmeta.Type = fs.Type_Socket
	case os.ModeDevice:
		fmeta.Type = fs.Type_Device
	case os.ModeDevice | os.ModeCharDevice:
		fmeta.Type = fs.Type_CharDevice
	default:
		return nil, Errorf(fs.ErrIO, "unknown file mode %s at %s", fm, rpath)
	}
	fmeta.Perms = fs.Perms(fm.Perm())
	if fm&os.ModeSetuid != 0 {
		fmeta.Perms |= fs.Perms_Setuid
	}
	if fm&os.ModeSetgid != 0 {
		fmeta.Perms |= fs.Perms_Setgid
	}
	if fm&os.ModeSticky != 0 {
		fmeta.Perms |= fs.Perms_Sticky
	}

	// Size is "system dependent" for anything but files.
	if fmeta.Type == fs.Type_File {
		fmeta.Size = fi.Size()
	}
	return fmeta, nil
}

func (afs *osFS) ReadDirNames(path fs.RelPath) ([]string, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(rpath)
	if err != nil {
		return nil, fs.NormalizeIOError(err)
	}
	names, err := f.Readdirnames(-1)
	f.Close()
	if err != nil {
		return names, fs.NormalizeIOError(err)
	}
	return names, nil
}

func (afs *osFS) Readlink(path fs.RelPath) (string, bool, error) {
	rpath, err := afs.realpath(path)
	if err != nil {
		return "", false, err
	}
	target, isLink, err := readlink(rpath)
	return target, isLink, fs.NormalizeIOError(err)
}

func readlink(path string) (string, bool, error) {
	target, err := os.Readlink(path)
	switch {
	case err == nil:
		return target, true, nil
	case isErrno(err, syscall.EINVAL):
		// EINVAL means "not a symlink".
		return "", false, nil
	default:
		return "", false, err
	}
}

func isErrno(err error, errno syscall.Errno) bool {
	if e2, ok := err.(*os.PathError); ok {
		return e2.Err == errno
	}
	return false
}

// Intermediate symlinks are followed by the host as usual; only paths which
// lexically leave the base are refused.
func (afs *osFS) realpath(path fs.RelPath) (string, error) {
	if path.GoesUp() {
		return "", Errorf(fs.ErrBreakout, "fs: invalid path %q: must not depart basepath", path)
	}
	return afs.basePath.Join(path).String(), nil
}

func permsToOs(perms fs.Perms) os.FileMode {
	mode := os.FileMode(perms & 0777)
	if perms&fs.Perms_Setuid != 0 {
		mode |= os.ModeSetuid
	}
	if perms&fs.Perms_Setgid != 0 {
		mode |= os.ModeSetgid
	}
	if perms&fs.Perms_Sticky != 0 {
		mode |= os.ModeSticky
	}
	return mode
}
