package fsOp

import (
	"io"
	"os"

	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator/fs"
)

/*
	Places a file on the filesystem.
	Replicates type, permissions, and mtime as described in the metadata;
	ownership is not carried.

	The path within the filesystem is `fmeta.Name`.  Its parent must exist.

	An existing regular file at the path is truncated and overwritten;
	an existing directory is accepted as-is (then chmod'd and chtime'd),
	so placing the same tree twice converges.  Any other collision is ErrExists.

	Only files, dirs, and symlinks are supported.  Staging a project tree
	that contains fifos, sockets, or devices is an error for that entry.
*/
func PlaceFile(afs fs.FS, fmeta fs.Metadata, body io.Reader) error {
	switch fmeta.Type {
	case fs.Type_Invalid:
		return Errorf(fs.ErrIO, "invalid fs.Metadata.Type for %s; partially constructed object?", fmeta.Name)
	case fs.Type_File:
		file, err := afs.OpenFile(fmeta.Name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fmeta.Perms)
		if err != nil {
			return err
		}
		if body != nil {
			if _, err := io.Copy(file, body); err != nil {
				file.Close()
				return fs.NormalizeIOError(err)
			}
		}
		if err := file.Close(); err != nil {
			return fs.NormalizeIOError(err)
		}
	case fs.Type_Dir:
		if err := afs.Mkdir(fmeta.Name, fmeta.Perms); err != nil {
			if Category(err) != fs.ErrExists {
				return err
			}
			existing, err2 := afs.LStat(fmeta.Name)
			if err2 != nil || existing.Type != fs.Type_Dir {
				return err
			}
		}
	case fs.Type_Symlink:
		// linkname stays a plain string rather than an fs path type:
		// links may point anywhere, including outside the tree.
		if err := afs.Mklink(fmeta.Name, fmeta.Linkname); err != nil {
			return err
		}
	default:
		return Errorf(fs.ErrIO, "placefile: cannot place %s of type %s", fmeta.Name, fmeta.Type)
	}

	if fmeta.Type != fs.Type_Symlink {
		// there's no such thing as `lchmod` on linux.
		if err := afs.Chmod(fmeta.Name, fmeta.Perms); err != nil {
			return err
		}
	}
	if !fmeta.Mtime.IsZero() {
		if err := afs.SetTimesNano(fmeta.Name, fmeta.Mtime); err != nil {
			return err
		}
	}
	return nil
}
