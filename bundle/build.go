/*
	Package bundle writes the zip archives update-generator ships.

	Build packs a whole directory.  BuildNested wraps an already-built
	archive together with its version metadata file, which is the shape
	the installer on the receiving end unpacks.
*/
package bundle

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
	"github.com/Maheshkerai/update-generator/fs"
	"github.com/Maheshkerai/update-generator/fs/osfs"
)

const (
	DefaultInnerEntry    = "source_code.zip"
	DefaultMetadataEntry = "version_info.php"
)

// Entries names the two members of a nested archive.
// Zero fields fall back to the defaults above.
type Entries struct {
	Inner    string
	Metadata string
}

type Builder struct {
	Log *log.Logger
}

/*
	Build packs every file, symlink, and directory under sourceDir into a
	zip at archivePath, with names relative to sourceDir.  Empty directories
	are kept as entries.  Returns the number of entries written.

	Any file already at archivePath is removed first.  The archive is
	written beside its final path and renamed into place, so a failed build
	never leaves a truncated archive under the real name.
*/
func (b *Builder) Build(ctx context.Context, sourceDir string, archivePath string) (_ int, err error) {
	defer RequireErrorHasCategory(&err, updategen.ErrorCategory(""))

	srcPath, err := fs.ParseAbsolutePath(sourceDir)
	if err != nil {
		return 0, Errorf(updategen.ErrArchive, "invalid source dir: %s", err)
	}
	afs := osfs.New(srcPath)
	stat, err := afs.Stat(fs.RelPath{})
	switch {
	case err != nil:
		return 0, Errorf(updategen.ErrArchive, "cannot read source dir for archiving: %s", err)
	case stat.Type != fs.Type_Dir:
		return 0, Errorf(updategen.ErrArchive, "source for archiving %s is not a directory", srcPath)
	}

	var count int
	err = writeAtomically(archivePath, func(tmpPath string, w io.Writer) error {
		skip := selfEntries(srcPath, archivePath, tmpPath)
		zw := zip.NewWriter(w)
		preVisit := func(filenode *fs.FilewalkNode) error {
			if filenode.Err != nil {
				return Errorf(updategen.ErrArchive, "error while walking %s: %s", srcPath, filenode.Err)
			}
			if ctx.Err() != nil {
				return Errorf(updategen.ErrArchive, "archiving cancelled: %s", ctx.Err())
			}
			if filenode.Path == (fs.RelPath{}) {
				return nil
			}
			if _, ok := skip[filenode.Path]; ok {
				return nil
			}
			if err := b.writeEntry(afs, zw, filenode.Info); err != nil {
				return err
			}
			count++
			return nil
		}
		if err := fs.Walk(afs, preVisit, nil); err != nil {
			if _, ok := Category(err).(updategen.ErrorCategory); ok {
				return err
			}
			return Errorf(updategen.ErrArchive, "error while walking %s: %s", srcPath, err)
		}
		if err := zw.Close(); err != nil {
			return Errorf(updategen.ErrArchive, "error finishing archive: %s", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	b.logger().Info("archive built", "archive", archivePath, "entries", count)
	return count, nil
}

func (b *Builder) writeEntry(afs fs.FS, zw *zip.Writer, fmeta *fs.Metadata) error {
	switch fmeta.Type {
	case fs.Type_File, fs.Type_Dir, fs.Type_Symlink:
	default:
		b.logger().Warn("skipping special file", "path", fmeta.Name.Slash(), "type", fmeta.Type)
		return nil
	}
	hdr := &zip.FileHeader{}
	MetadataToZipHdr(fmeta, hdr)
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return Errorf(updategen.ErrArchive, "error while writing archive entry %s: %s", hdr.Name, err)
	}
	switch fmeta.Type {
	case fs.Type_Symlink:
		_, err = fw.Write([]byte(fmeta.Linkname))
	case fs.Type_File:
		var f fs.File
		f, err = afs.OpenFile(fmeta.Name, os.O_RDONLY, 0)
		if err != nil {
			return Errorf(updategen.ErrArchive, "cannot read %s for archiving: %s", fmeta.Name, err)
		}
		_, err = io.Copy(fw, f)
		f.Close()
	}
	if err != nil {
		return Errorf(updategen.ErrArchive, "error while writing archive entry %s: %s", hdr.Name, err)
	}
	return nil
}

/*
	BuildNested writes an archive at outerPath holding exactly two entries:
	the archive at innerPath and the metadata file at metadataPath, under
	the names given by `names`.
*/
func (b *Builder) BuildNested(innerPath, metadataPath, outerPath string, names Entries) (err error) {
	defer RequireErrorHasCategory(&err, updategen.ErrorCategory(""))

	if names.Inner == "" {
		names.Inner = DefaultInnerEntry
	}
	if names.Metadata == "" {
		names.Metadata = DefaultMetadataEntry
	}
	members := []struct {
		path, name string
		method     uint16
	}{
		{innerPath, names.Inner, zip.Store}, // already compressed
		{metadataPath, names.Metadata, zip.Deflate},
	}
	for _, m := range members {
		info, err := os.Stat(m.path)
		if err != nil {
			return Errorf(updategen.ErrArchive, "missing input for nested archive: %s", err)
		}
		if !info.Mode().IsRegular() {
			return Errorf(updategen.ErrArchive, "input for nested archive %s is not a regular file", m.path)
		}
	}

	err = writeAtomically(outerPath, func(_ string, w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, m := range members {
			if err := addFile(zw, m.path, m.name, m.method); err != nil {
				return err
			}
		}
		if err := zw.Close(); err != nil {
			return Errorf(updategen.ErrArchive, "error finishing archive: %s", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.logger().Info("nested archive built", "archive", outerPath, "inner", names.Inner, "metadata", names.Metadata)
	return nil
}

func addFile(zw *zip.Writer, path, name string, method uint16) error {
	f, err := os.Open(path)
	if err != nil {
		return Errorf(updategen.ErrArchive, "cannot read %s for archiving: %s", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Errorf(updategen.ErrArchive, "cannot stat %s for archiving: %s", path, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return Errorf(updategen.ErrArchive, "cannot describe %s for archiving: %s", path, err)
	}
	hdr.Name = name
	hdr.Method = method
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return Errorf(updategen.ErrArchive, "error while writing archive entry %s: %s", name, err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return Errorf(updategen.ErrArchive, "error while writing archive entry %s: %s", name, err)
	}
	return nil
}

// List returns the entry names of the archive at path, in archive order.
func List(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, Errorf(updategen.ErrArchive, "cannot open archive %s: %s", path, err)
	}
	defer r.Close()
	names := make([]string, len(r.File))
	for i, f := range r.File {
		names[i] = f.Name
	}
	return names, nil
}

// ReadEntry returns the body of one named entry.
func ReadEntry(path, name string) ([]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, Errorf(updategen.ErrArchive, "cannot open archive %s: %s", path, err)
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, Errorf(updategen.ErrArchive, "cannot open entry %s in %s: %s", name, path, err)
		}
		defer rc.Close()
		body, err := io.ReadAll(rc)
		if err != nil {
			return nil, Errorf(updategen.ErrArchive, "cannot read entry %s in %s: %s", name, path, err)
		}
		return body, nil
	}
	return nil, Errorf(updategen.ErrArchive, "archive %s has no entry %s", path, name)
}

// writeAtomically removes any existing file at path, then hands fn a
// temp file beside it; on success the temp file is renamed onto path.
func writeAtomically(path string, fn func(tmpPath string, w io.Writer) error) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return Errorf(updategen.ErrArchive, "cannot remove existing archive %s: %s", path, err)
	}
	tmpPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".partial-"+uuid.NewString())
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return Errorf(updategen.ErrArchive, "cannot create archive %s: %s", path, err)
	}
	if err := fn(tmpPath, f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return Errorf(updategen.ErrArchive, "error flushing archive %s: %s", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return Errorf(updategen.ErrArchive, "cannot move archive into place at %s: %s", path, err)
	}
	if _, err := os.Stat(path); err != nil {
		return Errorf(updategen.ErrArchive, "archive %s missing after creation: %s", path, err)
	}
	return nil
}

// selfEntries finds the archive's own paths when it is being written
// inside the tree it packs, so the walk can step over them.
func selfEntries(src fs.AbsolutePath, paths ...string) map[fs.RelPath]struct{} {
	skip := map[fs.RelPath]struct{}{}
	for _, p := range paths {
		abs, err := fs.ParseAbsolutePath(p)
		if err != nil {
			continue
		}
		if rel, err := abs.RelTo(src); err == nil {
			skip[rel] = struct{}{}
		}
	}
	return skip
}

func (b *Builder) logger() *log.Logger {
	if b == nil || b.Log == nil {
		return log.New(io.Discard)
	}
	return b.Log
}
