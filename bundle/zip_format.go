package bundle

import (
	"archive/zip"

	"github.com/Maheshkerai/update-generator/fs"
)

// MetadataToZipHdr mutates zip.FileHeader fields to match the given fmeta.
//
// Names are bare slash paths ("app/Models/User.php"), with a trailing
// slash for directories, which is what unzip and PHP's ZipArchive expect.
// Files are deflated; directories and symlinks are stored.
// Symlink targets become the entry body, the Info-ZIP convention.
func MetadataToZipHdr(fmeta *fs.Metadata, hdr *zip.FileHeader) {
	hdr.Name = fmeta.Name.Slash()
	hdr.Method = zip.Store
	switch fmeta.Type {
	case fs.Type_Dir:
		hdr.Name += "/"
	case fs.Type_File:
		hdr.Method = zip.Deflate
		hdr.UncompressedSize64 = uint64(fmeta.Size)
	case fs.Type_Symlink:
		hdr.UncompressedSize64 = uint64(len(fmeta.Linkname))
	}
	hdr.SetMode(fmeta.FileMode())
	if !fmeta.Mtime.IsZero() {
		hdr.Modified = fmeta.Mtime
	}
}
