package fs

import (
	"os"
	"time"
)

type Type uint8

const (
	Type_Invalid Type = iota
	Type_File
	Type_Dir
	Type_Symlink
	Type_NamedPipe
	Type_Socket
	Type_Device
	Type_CharDevice
)

func (t Type) String() string {
	switch t {
	case Type_File:
		return "file"
	case Type_Dir:
		return "dir"
	case Type_Symlink:
		return "symlink"
	case Type_NamedPipe:
		return "fifo"
	case Type_Socket:
		return "socket"
	case Type_Device:
		return "device"
	case Type_CharDevice:
		return "chardevice"
	default:
		return "invalid"
	}
}

// Perms are the low twelve mode bits: permissions plus setuid, setgid and sticky.
type Perms uint16

const (
	Perms_Setuid Perms = 04000
	Perms_Setgid Perms = 02000
	Perms_Sticky Perms = 01000
)

// Metadata is the subset of stat information staging and archiving care about.
// Ownership is deliberately absent: packages are installed by a different
// user on a different host, so uid and gid would be noise.
type Metadata struct {
	Name     RelPath   // path relative to the FS base
	Type     Type      // file, dir, symlink...
	Perms    Perms     // permission bits
	Size     int64     // length in bytes, files only
	Linkname string    // if symlink: target of the link, verbatim
	Mtime    time.Time // modified time
}

// FileMode converts Type and Perms back into the stdlib representation,
// which is what archive/zip headers want.
func (m Metadata) FileMode() os.FileMode {
	mode := os.FileMode(m.Perms & 0777)
	if m.Perms&Perms_Setuid != 0 {
		mode |= os.ModeSetuid
	}
	if m.Perms&Perms_Setgid != 0 {
		mode |= os.ModeSetgid
	}
	if m.Perms&Perms_Sticky != 0 {
		mode |= os.ModeSticky
	}
	switch m.Type {
	case Type_Dir:
		mode |= os.ModeDir
	case Type_Symlink:
		mode |= os.ModeSymlink
	case Type_NamedPipe:
		mode |= os.ModeNamedPipe
	case Type_Socket:
		mode |= os.ModeSocket
	case Type_Device:
		mode |= os.ModeDevice
	case Type_CharDevice:
		mode |= os.ModeDevice | os.ModeCharDevice
	}
	return mode
}
