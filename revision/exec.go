package revision

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
)

// Runner runs one git command in dir and returns its stdout.
// Implementations report non-zero exits and timeouts as ErrRepository.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

/*
	ExecProvider answers ChangedFiles with exactly four git processes:

		git rev-parse --git-dir
		git rev-list -n 1 --before=<start> HEAD
		git rev-list -n 1 --before=<end> HEAD
		git -c core.quotepath=off diff --name-only --no-renames --diff-filter=ACM <a> <b>

	all run in Root, each bounded by Timeout.

	`--no-renames` makes a renamed file show up as an addition at its new
	path, rather than as an R entry the ACM filter would drop.
*/
type ExecProvider struct {
	Root    string
	Timeout time.Duration // DefaultTimeout when zero
	Runner  Runner        // GitRunner{} when nil
	Log     *log.Logger
}

func (p *ExecProvider) ChangedFiles(ctx context.Context, startDate, endDate string) (_ []string, err error) {
	defer RequireErrorHasCategory(&err, updategen.ErrorCategory(""))

	window, err := ParseWindow(startDate, endDate)
	if err != nil {
		return nil, err
	}
	if _, err := p.run(ctx, "rev-parse", "--git-dir"); err != nil {
		return nil, Errorf(updategen.ErrRepository, "%s is not a git repository: %s", p.Root, err)
	}
	startCommit, err := p.resolve(ctx, window.Start)
	if err != nil {
		return nil, err
	}
	endCommit, err := p.resolve(ctx, window.End)
	if err != nil {
		return nil, err
	}
	p.logger().Debug("resolved date window", "start", startCommit, "end", endCommit)

	out, err := p.run(ctx, "-c", "core.quotepath=off", "diff", "--name-only", "--no-renames", "--diff-filter=ACM", startCommit, endCommit)
	if err != nil {
		return nil, err
	}
	changes := uniqueLines(out)
	p.logger().Info("computed change set", "from", startDate, "to", endDate, "files", len(changes))
	return changes, nil
}

func (p *ExecProvider) resolve(ctx context.Context, before time.Time) (string, error) {
	out, err := p.run(ctx, "rev-list", "-n", "1", "--before="+before.Format(gitTimeFormat), "HEAD")
	if err != nil {
		return "", err
	}
	commit := strings.TrimSpace(out)
	if commit == "" {
		return "", Errorf(updategen.ErrRepository, "no commit found on or before %s", before.Format(gitTimeFormat))
	}
	return commit, nil
}

func (p *ExecProvider) run(ctx context.Context, args ...string) (string, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	runner := p.Runner
	if runner == nil {
		runner = GitRunner{}
	}
	return runner.Run(ctx, p.Root, args...)
}

func (p *ExecProvider) logger() *log.Logger {
	if p.Log == nil {
		return log.New(io.Discard)
	}
	return p.Log
}

// GitRunner runs the real git binary.
type GitRunner struct {
	Binary string // "git" when empty
}

func (r GitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := r.Binary
	if bin == "" {
		bin = "git"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", Errorf(updategen.ErrRepository, "cannot start %s: %s", bin, err)
	}
	code, err := waitFor(cmd)
	if ctx.Err() == context.DeadlineExceeded {
		return "", Errorf(updategen.ErrRepository, "git %s timed out", strings.Join(args, " "))
	}
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", ErrorDetailed(updategen.ErrRepository,
			"git "+args[0]+" failed: "+strings.TrimSpace(stderr.String()),
			map[string]string{
				"command":  bin + " " + strings.Join(args, " "),
				"exitCode": strconv.Itoa(code),
				"stderr":   stderr.String(),
			})
	}
	return stdout.String(), nil
}

func waitFor(cmd *exec.Cmd) (int, error) {
	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return -1, Errorf(updategen.ErrRepository, "git: unknown wait error: %s", err)
	}
	waitStatus, ok := exitErr.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		return -1, Errorf(updategen.ErrRepository, "git: unknown process state implementation %T", exitErr.ProcessState.Sys())
	}
	if waitStatus.Exited() {
		return waitStatus.ExitStatus(), nil
	} else if waitStatus.Signaled() {
		return int(waitStatus.Signal()) + 128, Errorf(updategen.ErrRepository, "git: process killed with signal %d", waitStatus.Signal())
	} else {
		return -1, Errorf(updategen.ErrRepository, "git: unknown process wait status (%#v)", waitStatus)
	}
}
