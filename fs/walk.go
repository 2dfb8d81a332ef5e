package fs

import (
	"errors"
	"sort"
)

type WalkFunc func(filenode *FilewalkNode) error

// SkipNode may be returned by a preVisit func to prune a directory:
// its children are not visited, and its postVisit still runs.
var SkipNode = errors.New("skip node")

/*
	Walks a filesystem, starting at the FS base path.

	This is much like the standard library's `path/filepath.Walk`,
	except it supports both pre- and post-order visits, and uses
	fs.RelPath to normalize path names.  The first node visited is always
	the base itself, with the zero RelPath as its name.

	Symlinks are not followed.

	Siblings are visited in lexical order, so anything produced by a walk
	(an archive, a copy log) is stable from run to run.

	Errors from stat are delivered in `node.Err` rather than aborting the
	walk; it is up to the visit funcs to decide if they are fatal.
*/
func Walk(afs FS, preVisit WalkFunc, postVisit WalkFunc) error {
	return walk(afs, newFileWalkNode(afs, RelPath{}), preVisit, postVisit)
}

func walk(afs FS, node *FilewalkNode, preVisit WalkFunc, postVisit WalkFunc) error {
	skip := false
	if preVisit != nil {
		switch err := preVisit(node); err {
		case nil:
		case SkipNode:
			skip = true
		default:
			return err
		}
	}
	if !skip && node.Err == nil && node.Info.Type == Type_Dir {
		names, err := afs.ReadDirNames(node.Info.Name)
		if err != nil {
			return err
		}
		sort.Strings(names)
		for _, name := range names {
			child := newFileWalkNode(afs, node.Info.Name.Join(MustRelPath(name)))
			if err := walk(afs, child, preVisit, postVisit); err != nil {
				return err
			}
		}
	}
	if postVisit != nil {
		return postVisit(node)
	}
	return nil
}

type FilewalkNode struct {
	Path RelPath
	Info *Metadata
	Err  error
}

func newFileWalkNode(afs FS, path RelPath) *FilewalkNode {
	filenode := &FilewalkNode{Path: path}
	filenode.Info, filenode.Err = afs.LStat(path)
	return filenode
}
