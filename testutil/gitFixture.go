package testutil

import (
	"fmt"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"gopkg.in/src-d/go-billy.v4/util"
	"gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/object"

	"github.com/Maheshkerai/update-generator/fs"
)

/*
	A throwaway git repository for revision and workflow tests.

	Commits are made in-process with go-git, at whatever timestamp the test
	asks for, so date-window behavior is testable without a clock.
	The result is an ordinary on-disk repository, readable by the git binary too.
*/
type FixtureRepo struct {
	Path fs.AbsolutePath
	repo *git.Repository
	n    int
}

func NewFixtureRepo(dir fs.AbsolutePath) *FixtureRepo {
	repo, err := git.PlainInit(dir.String(), false)
	convey.So(err, convey.ShouldBeNil)
	return &FixtureRepo{Path: dir, repo: repo}
}

// Commit writes the given files (slash path -> body) and commits them at `when`.
func (r *FixtureRepo) Commit(when time.Time, files map[string]string) plumbing.Hash {
	wt, err := r.repo.Worktree()
	convey.So(err, convey.ShouldBeNil)
	for name, body := range files {
		convey.So(util.WriteFile(wt.Filesystem, name, []byte(body), 0644), convey.ShouldBeNil)
		_, err := wt.Add(name)
		convey.So(err, convey.ShouldBeNil)
	}
	return r.commit(wt, when)
}

// Delete removes files from the worktree and index and commits at `when`.
func (r *FixtureRepo) Delete(when time.Time, names ...string) plumbing.Hash {
	wt, err := r.repo.Worktree()
	convey.So(err, convey.ShouldBeNil)
	for _, name := range names {
		_, err := wt.Remove(name)
		convey.So(err, convey.ShouldBeNil)
	}
	return r.commit(wt, when)
}

func (r *FixtureRepo) commit(wt *git.Worktree, when time.Time) plumbing.Hash {
	r.n++
	sig := &object.Signature{Name: "Fixture", Email: "fixture@example.com", When: when}
	hash, err := wt.Commit(fmt.Sprintf("fixture commit %d", r.n), &git.CommitOptions{
		Author:    sig,
		Committer: sig,
	})
	convey.So(err, convey.ShouldBeNil)
	return hash
}
