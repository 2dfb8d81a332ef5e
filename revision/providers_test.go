package revision

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
	"github.com/Maheshkerai/update-generator/fs"
	"github.com/Maheshkerai/update-generator/testutil"
)

func noon(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.Local)
}

// A small history: files added in January, one edited and one added in
// February, one deleted and one added in March.
func withHistory(fn func(repo *testutil.FixtureRepo)) {
	testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
		repo := testutil.NewFixtureRepo(tmpDir)
		repo.Commit(noon(2024, 1, 10), map[string]string{
			"app/Models/User.php": "v1",
			"app/Legacy.php":      "old",
			"README.md":           "readme",
		})
		repo.Commit(noon(2024, 2, 10), map[string]string{
			"app/Models/User.php": "v2",
			"routes/web.php":      "<?php",
		})
		repo.Delete(noon(2024, 3, 10), "app/Legacy.php")
		repo.Commit(noon(2024, 3, 11), map[string]string{
			"config/app.php": "<?php return [];",
		})
		fn(repo)
	})
}

func checkProvider(newProvider func(root string) Provider) {
	withHistory(func(repo *testutil.FixtureRepo) {
		p := newProvider(repo.Path.String())
		ctx := context.Background()

		Convey("reports additions and modifications, never deletions", func() {
			changes, err := p.ChangedFiles(ctx, "2024-01-15", "2024-03-31")
			So(err, ShouldBeNil)
			So(changes, ShouldResemble, []string{"app/Models/User.php", "config/app.php", "routes/web.php"})
		})
		Convey("a window inside one commit's reach is empty", func() {
			changes, err := p.ChangedFiles(ctx, "2024-01-11", "2024-01-20")
			So(err, ShouldBeNil)
			So(changes, ShouldBeEmpty)
		})
		Convey("the end date includes commits made during that day", func() {
			changes, err := p.ChangedFiles(ctx, "2024-01-10", "2024-02-10")
			So(err, ShouldBeNil)
			So(changes, ShouldResemble, []string{"app/Models/User.php", "routes/web.php"})
		})
		Convey("a start before the first commit is a repository error", func() {
			_, err := p.ChangedFiles(ctx, "2023-12-01", "2024-02-10")
			So(err, errcat.ErrorShouldHaveCategory, updategen.ErrRepository)
		})
		Convey("an inverted window is a date error", func() {
			_, err := p.ChangedFiles(ctx, "2024-02-10", "2024-01-10")
			So(err, errcat.ErrorShouldHaveCategory, updategen.ErrDate)
		})
	})
}

func TestNativeProvider(t *testing.T) {
	Convey("NativeProvider:", t, func() {
		checkProvider(func(root string) Provider { return &NativeProvider{Root: root} })

		Convey("outside a repository is a repository error", func() {
			testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
				_, err := (&NativeProvider{Root: tmpDir.String()}).ChangedFiles(context.Background(), "2024-01-01", "2024-02-01")
				So(err, errcat.ErrorShouldHaveCategory, updategen.ErrRepository)
			})
		})
	})
}

func TestExecProvider(t *testing.T) {
	Convey("ExecProvider against the git binary:", t, testutil.Requires(testutil.RequiresGitBinary, func() {
		checkProvider(func(root string) Provider { return &ExecProvider{Root: root, Timeout: 30 * time.Second} })
	}))
}
