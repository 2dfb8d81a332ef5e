package fs

import (
	"path"
	"path/filepath"
	"strings"

	. "github.com/warpfork/go-errcat"
)

// RelPath and AbsolutePath are not interchangeable.
// Staging works almost entirely in RelPath, relative to a copy root,
// because exclusion rules are written against those relative names;
// AbsolutePath is for the roots themselves.

type RelPath struct {
	path      string
	lastSplit int
}

func MustRelPath(p string) RelPath {
	p = path.Clean(p)
	if p[0] == '/' {
		panic("fs: relative path required, got " + p)
	}
	if p == "." {
		return RelPath{}
	}
	return RelPath{p, strings.LastIndexByte(p, '/')}
}

// ParseRelPath is MustRelPath for untrusted input: change set entries,
// configured include lists, and so on.
func ParseRelPath(p string) (RelPath, error) {
	if p == "" {
		return RelPath{}, Errorf(ErrInvalidPath, "empty path")
	}
	if strings.HasPrefix(p, "/") {
		return RelPath{}, Errorf(ErrInvalidPath, "path %q must be relative", p)
	}
	return MustRelPath(p), nil
}

func (p RelPath) String() string {
	if p.path == "" {
		return "."
	} else if p.GoesUp() {
		return p.path
	} else {
		return "./" + p.path
	}
}

// Slash returns the bare slash-separated form ("a/b", or "" for the root),
// which is the form exclusion rules and archive entry names are written in.
func (p RelPath) Slash() string {
	return p.path
}

func (p RelPath) GoesUp() bool {
	return p.path == ".." || strings.HasPrefix(p.path, "../")
}

func (p RelPath) Dir() RelPath {
	if p.path == "" {
		return p
	} else if p.lastSplit == -1 {
		return RelPath{}
	} else {
		p2 := p.path[0:p.lastSplit]
		return RelPath{p2, strings.LastIndexByte(p2, '/')}
	}
}

func (p RelPath) Last() string {
	if p.path == "" {
		return "."
	} else if p.lastSplit == -1 {
		return p.path
	} else {
		return p.path[p.lastSplit+1:]
	}
}

func (p RelPath) Join(p2 RelPath) RelPath {
	switch {
	case p2.path == "":
		return p
	case p.path == "":
		return p2
	default:
		return RelPath{p.path + "/" + p2.path, len(p.path) + p2.lastSplit + 1}
	}
}

type AbsolutePath struct {
	path      string
	lastSplit int
}

func MustAbsolutePath(p string) AbsolutePath {
	p = path.Clean(p)
	if p[0] != '/' {
		panic("fs: absolute path required, got " + p)
	}
	if p == "/" {
		return AbsolutePath{}
	}
	return AbsolutePath{p, strings.LastIndexByte(p, '/')}
}

// ParseAbsolutePath resolves p against the working directory if needed.
// Symlinks are not resolved; see Canonical for that.
func ParseAbsolutePath(p string) (AbsolutePath, error) {
	if p == "" {
		return AbsolutePath{}, Errorf(ErrInvalidPath, "empty path")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return AbsolutePath{}, NormalizeIOError(err)
	}
	return MustAbsolutePath(filepath.ToSlash(abs)), nil
}

func (p AbsolutePath) String() string {
	if p.path == "" {
		return "/"
	}
	return p.path
}

func (p AbsolutePath) Dir() AbsolutePath {
	if p.path == "" {
		return p
	} else if p.lastSplit == 0 {
		return AbsolutePath{}
	} else {
		p2 := p.path[0:p.lastSplit]
		return AbsolutePath{p2, strings.LastIndexByte(p2, '/')}
	}
}

func (p AbsolutePath) Last() string {
	if p.path == "" {
		return "/"
	} else {
		return p.path[p.lastSplit+1:]
	}
}

func (p AbsolutePath) Join(p2 RelPath) AbsolutePath {
	switch {
	case p2.path == "":
		return p
	default:
		return AbsolutePath{p.path + "/" + p2.path, len(p.path) + p2.lastSplit + 1}
	}
}

// Contains is true if other is p itself or anything beneath it.
// Purely lexical: callers wanting symlink-aware answers should compare
// Canonical paths.
func (p AbsolutePath) Contains(other AbsolutePath) bool {
	if p.path == "" {
		return true
	}
	return other.path == p.path || strings.HasPrefix(other.path, p.path+"/")
}

// RelTo returns p relative to base, failing if p is not beneath base.
func (p AbsolutePath) RelTo(base AbsolutePath) (RelPath, error) {
	if !base.Contains(p) {
		return RelPath{}, Errorf(ErrBreakout, "%s is not inside %s", p, base)
	}
	if p.path == base.path {
		return RelPath{}, nil
	}
	return MustRelPath(strings.TrimPrefix(p.path, base.path+"/")), nil
}
