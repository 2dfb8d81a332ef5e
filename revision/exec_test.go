package revision

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
	"github.com/Maheshkerai/update-generator/fs"
	"github.com/Maheshkerai/update-generator/testutil"
)

// fakeRunner answers by subcommand and records every invocation.
type fakeRunner struct {
	calls   [][]string
	answers map[string]string
	fail    map[string]error
}

func (r *fakeRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	r.calls = append(r.calls, args)
	key := args[0]
	if key == "-c" {
		key = args[2]
	}
	if err := r.fail[key]; err != nil {
		return "", err
	}
	return r.answers[key], nil
}

func TestExecProviderContract(t *testing.T) {
	Convey("ExecProvider command contract:", t, func() {
		runner := &fakeRunner{
			answers: map[string]string{
				"rev-parse": ".git\n",
				"rev-list":  "4b825dc642cb6eb9a060e54bf8d69288fbee4904\n",
				"diff":      "app/Http/Kernel.php\n\nroutes/web.php\napp/Http/Kernel.php\n",
			},
			fail: map[string]error{},
		}
		p := &ExecProvider{Root: "/srv/project", Runner: runner}

		Convey("runs exactly four commands and dedups the output", func() {
			changes, err := p.ChangedFiles(context.Background(), "2024-01-01", "2024-02-01")
			So(err, ShouldBeNil)
			So(changes, ShouldResemble, []string{"app/Http/Kernel.php", "routes/web.php"})
			So(runner.calls, ShouldHaveLength, 4)
			So(runner.calls[0], ShouldResemble, []string{"rev-parse", "--git-dir"})
			So(runner.calls[1][0:3], ShouldResemble, []string{"rev-list", "-n", "1"})
			So(runner.calls[1][3], ShouldStartWith, "--before=2024-01-01 23:59:59")
			So(runner.calls[2][3], ShouldStartWith, "--before=2024-02-01 23:59:59")
			So(strings.Join(runner.calls[3], " "), ShouldEqual,
				"-c core.quotepath=off diff --name-only --no-renames --diff-filter=ACM 4b825dc642cb6eb9a060e54bf8d69288fbee4904 4b825dc642cb6eb9a060e54bf8d69288fbee4904")
		})
		Convey("bad dates fail before any command runs", func() {
			_, err := p.ChangedFiles(context.Background(), "2024-02-01", "2024-01-01")
			So(err, errcat.ErrorShouldHaveCategory, updategen.ErrDate)
			So(runner.calls, ShouldBeEmpty)
		})
		Convey("outside a repository is a repository error", func() {
			runner.fail["rev-parse"] = errcat.Errorf(updategen.ErrRepository, "fatal: not a git repository")
			_, err := p.ChangedFiles(context.Background(), "2024-01-01", "2024-02-01")
			So(err, errcat.ErrorShouldHaveCategory, updategen.ErrRepository)
			So(runner.calls, ShouldHaveLength, 1)
		})
		Convey("a date before the first commit is a repository error", func() {
			runner.answers["rev-list"] = "\n"
			_, err := p.ChangedFiles(context.Background(), "2024-01-01", "2024-02-01")
			So(err, errcat.ErrorShouldHaveCategory, updategen.ErrRepository)
		})
		Convey("an empty diff is an empty change set, not an error", func() {
			runner.answers["diff"] = ""
			changes, err := p.ChangedFiles(context.Background(), "2024-01-01", "2024-02-01")
			So(err, ShouldBeNil)
			So(changes, ShouldBeEmpty)
		})
	})
}

var requiresSleep = testutil.ConveyRequirement{Name: "sleep on PATH", Predicate: func() bool {
	_, err := exec.LookPath("sleep")
	return err == nil
}}

func TestGitRunner(t *testing.T) {
	Convey("GitRunner:", t, testutil.Requires(requiresSleep, func() {
		Convey("kills and reports commands that outlive their deadline", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err := GitRunner{Binary: "sleep"}.Run(ctx, "/", "5")
			So(err, errcat.ErrorShouldHaveCategory, updategen.ErrRepository)
			So(err.Error(), ShouldContainSubstring, "timed out")
		})
	}))
	Convey("GitRunner against a real repository:", t, testutil.Requires(testutil.RequiresGitBinary, func() {
		testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
			Convey("non-zero exits carry stderr", func() {
				_, err := GitRunner{}.Run(context.Background(), tmpDir.String(), "rev-parse", "--git-dir")
				So(err, errcat.ErrorShouldHaveCategory, updategen.ErrRepository)
				So(err.(errcat.Error).Details()["stderr"], ShouldContainSubstring, "not a git repository")
			})
		})
	}))
}
