package fsOp

import (
	"os"

	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator/fs"
)

/*
	Makes dirs recursively so the requested path exists.

	Existing dirs are not mutated.
	Symlinks to directories are traversed without comment.
*/
func MkdirAll(afs fs.FS, path fs.RelPath, perms fs.Perms) error {
	stat, err := afs.Stat(path)
	switch Category(err) {
	case nil:
		if stat.Type == fs.Type_Dir {
			return nil
		}
		return Errorf(fs.ErrNotDir, "%s already exists and is a %s not %s", afs.BasePath().Join(path), stat.Type, fs.Type_Dir)
	case fs.ErrNotExists:
		if path == (fs.RelPath{}) {
			return Errorf(fs.ErrNotExists, "base path %s does not exist!", afs.BasePath())
		}
		if err := MkdirAll(afs, path.Dir(), perms); err != nil {
			return err
		}
		if err := afs.Mkdir(path, perms); err != nil {
			switch Category(err) {
			case fs.ErrExists:
				// stat said it didn't exist, mkdir says it does: a dangling symlink.
				return Errorf(fs.ErrNotDir, "%s already exists and is a %s not %s", afs.BasePath().Join(path), fs.Type_Symlink, fs.Type_Dir)
			default:
				return err
			}
		}
		return nil
	case fs.ErrNotDir:
		return Errorf(fs.ErrNotDir, "%s has parents which are not a directory", afs.BasePath().Join(path))
	default:
		return err
	}
}

/*
	Copies one entry (file, symlink, or dir without its contents) from
	srcFS to the same relative path in dstFS, creating parent dirs as needed.
	Returns the metadata of the source entry.

	If the entry is a file, the source is opened only after the destination
	parents exist, so a failure leaves at worst an empty parent dir behind.
*/
func CopyEntry(srcFS, dstFS fs.FS, path fs.RelPath) (*fs.Metadata, error) {
	fmeta, err := srcFS.LStat(path)
	if err != nil {
		return nil, err
	}
	return fmeta, CopyEntryAs(srcFS, dstFS, *fmeta, path)
}

// CopyEntryAs is CopyEntry with the source metadata already in hand,
// placing it at `dest` rather than at its own name.
func CopyEntryAs(srcFS, dstFS fs.FS, fmeta fs.Metadata, dest fs.RelPath) error {
	if dest != (fs.RelPath{}) {
		if err := MkdirAll(dstFS, dest.Dir(), 0755); err != nil {
			return err
		}
	}
	src := fmeta.Name
	fmeta.Name = dest
	if fmeta.Type != fs.Type_File {
		return PlaceFile(dstFS, fmeta, nil)
	}
	f, err := srcFS.OpenFile(src, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return PlaceFile(dstFS, fmeta, f)
}
