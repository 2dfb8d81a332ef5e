package revision

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	. "github.com/warpfork/go-errcat"
	srcd_git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/object"
	"gopkg.in/src-d/go-git.v4/utils/merkletrie"

	"github.com/Maheshkerai/update-generator"
)

/*
	NativeProvider answers ChangedFiles by reading the repository with
	go-git.  Results match ExecProvider: the newest commit (by committer
	time) at or before each date, then the added and modified paths
	between the two trees, sorted the way `git diff` sorts them.
	Renames surface as additions at the new path.

	Timeout bounds the whole call.
*/
type NativeProvider struct {
	Root    string
	Timeout time.Duration // DefaultTimeout when zero
	Log     *log.Logger
}

func (p *NativeProvider) ChangedFiles(ctx context.Context, startDate, endDate string) (_ []string, err error) {
	defer RequireErrorHasCategory(&err, updategen.ErrorCategory(""))

	window, err := ParseWindow(startDate, endDate)
	if err != nil {
		return nil, err
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	repo, err := srcd_git.PlainOpenWithOptions(p.Root, &srcd_git.PlainOpenOptions{DetectDotGit: true})
	switch {
	case err == srcd_git.ErrRepositoryNotExists:
		return nil, Errorf(updategen.ErrRepository, "%s is not a git repository", p.Root)
	case err != nil:
		return nil, Errorf(updategen.ErrRepository, "cannot open repository at %s: %s", p.Root, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, Errorf(updategen.ErrRepository, "cannot resolve HEAD in %s: %s", p.Root, err)
	}

	startCommit, endCommit, err := newestBefore(ctx, repo, head.Hash(), window)
	if err != nil {
		return nil, err
	}
	p.logger().Debug("resolved date window", "start", startCommit.Hash.String(), "end", endCommit.Hash.String())

	changes, err := diffCommits(startCommit, endCommit)
	if err != nil {
		return nil, err
	}
	p.logger().Info("computed change set", "from", startDate, "to", endDate, "files", len(changes))
	return changes, nil
}

// newestBefore walks history from head once, picking for each end of the
// window the commit with the latest committer time not after it.
func newestBefore(ctx context.Context, repo *srcd_git.Repository, head plumbing.Hash, window Window) (start, end *object.Commit, err error) {
	iter, err := repo.Log(&srcd_git.LogOptions{From: head})
	if err != nil {
		return nil, nil, Errorf(updategen.ErrRepository, "cannot read history: %s", err)
	}
	defer iter.Close()
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		when := c.Committer.When
		if !when.After(window.Start) && (start == nil || when.After(start.Committer.When)) {
			start = c
		}
		if !when.After(window.End) && (end == nil || when.After(end.Committer.When)) {
			end = c
		}
		return nil
	})
	switch {
	case err == context.DeadlineExceeded:
		return nil, nil, Errorf(updategen.ErrRepository, "reading history timed out")
	case err != nil:
		return nil, nil, Errorf(updategen.ErrRepository, "cannot read history: %s", err)
	case start == nil:
		return nil, nil, Errorf(updategen.ErrRepository, "no commit found on or before %s", window.Start.Format(gitTimeFormat))
	case end == nil:
		return nil, nil, Errorf(updategen.ErrRepository, "no commit found on or before %s", window.End.Format(gitTimeFormat))
	}
	return start, end, nil
}

func diffCommits(a, b *object.Commit) ([]string, error) {
	treeA, err := a.Tree()
	if err != nil {
		return nil, Errorf(updategen.ErrRepository, "cannot read tree of %s: %s", a.Hash, err)
	}
	treeB, err := b.Tree()
	if err != nil {
		return nil, Errorf(updategen.ErrRepository, "cannot read tree of %s: %s", b.Hash, err)
	}
	changes, err := object.DiffTree(treeA, treeB)
	if err != nil {
		return nil, Errorf(updategen.ErrRepository, "cannot diff %s..%s: %s", a.Hash, b.Hash, err)
	}
	var paths []string
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, Errorf(updategen.ErrRepository, "cannot classify change: %s", err)
		}
		switch action {
		case merkletrie.Insert, merkletrie.Modify:
			paths = append(paths, change.To.Name)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (p *NativeProvider) logger() *log.Logger {
	if p.Log == nil {
		return log.New(io.Discard)
	}
	return p.Log
}
