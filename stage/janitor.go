package stage

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
)

type Janitor interface {
	// Describe, in a shell-like way, what the teardown would do.
	Description() string

	// Do the teardown.  Removing something already gone is not an error.
	Teardown() error
}

// RemoveJanitor removes a staging directory or intermediate file.
type RemoveJanitor struct {
	Path string
}

func (j RemoveJanitor) Description() string {
	return fmt.Sprintf("rm -rf %q;", j.Path)
}

func (j RemoveJanitor) Teardown() error {
	if err := os.RemoveAll(j.Path); err != nil {
		return Errorf(updategen.ErrIO, "error tearing down %s: %s", j.Path, err)
	}
	return nil
}

/*
	Janitors collects teardowns for one workflow run.

	Teardown runs them all in reverse registration order, logging (and
	otherwise ignoring) any failure: cleanup runs on error paths too, and
	must never replace the error that caused it.
*/
type Janitors struct {
	list []Janitor
}

func (js *Janitors) Add(j Janitor) {
	js.list = append(js.list, j)
}

// Remove registers a RemoveJanitor for path.
func (js *Janitors) Remove(path string) {
	js.Add(RemoveJanitor{path})
}

// Teardown returns the number of failed teardowns.
func (js *Janitors) Teardown(logger *log.Logger) (failed int) {
	for i := len(js.list) - 1; i >= 0; i-- {
		j := js.list[i]
		if err := j.Teardown(); err != nil {
			failed++
			if logger != nil {
				logger.Warn("cleanup failed", "action", j.Description(), "err", err)
			}
			continue
		}
		if logger != nil {
			logger.Debug("cleaned up", "action", j.Description())
		}
	}
	js.list = nil
	return failed
}
