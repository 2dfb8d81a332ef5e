/*
	Package revision answers one question about a project's history:
	which files were added, copied, or modified between two calendar dates.

	Each date is resolved to the newest commit reachable from HEAD whose
	committer time is not after it; the change set is the diff between
	those two commits.  Deletions are never reported, since a package can
	only carry files that exist.

	Two providers implement the contract.  ExecProvider drives the git
	binary; NativeProvider reads the repository in-process with go-git and
	needs no binary at all.
*/
package revision

import (
	"context"
	"strings"
	"time"
)

const DefaultTimeout = 300 * time.Second

type Provider interface {
	// ChangedFiles returns the change set between two dates, relative to
	// the repository root, deduplicated, in the order git reports them.
	ChangedFiles(ctx context.Context, startDate, endDate string) ([]string, error)
}

// uniqueLines splits command output into a change set:
// blank lines dropped, duplicates dropped, first occurrence wins.
func uniqueLines(out string) []string {
	seen := map[string]struct{}{}
	var result []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		result = append(result, line)
	}
	return result
}
