package testutil

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

type ConveyRequirement struct {
	Name      string
	Predicate func() bool
}

/*
	Require that the tests are not running with the "short" flag enabled.
*/
var RequiresLongRun = ConveyRequirement{"run long tests", func() bool { return !testing.Short() }}

/*
	Require a `git` binary on the PATH.  The exec revision provider and its
	tests drive the real command.
*/
var RequiresGitBinary = ConveyRequirement{"git on PATH", func() bool {
	_, err := exec.LookPath("git")
	return err == nil
}}

/*
	Require than an env var *not* be set.

	We use this for things like `RequiresEnvBlank("UPDGEN_PROJECT_ROOT")`,
	for tests whose config would be overridden by a stray environment.
*/
func RequiresEnvBlank(key string) ConveyRequirement {
	return ConveyRequirement{
		fmt.Sprintf("env %q must not be set", key),
		func() bool { return os.Getenv(key) == "" },
	}
}

/*
	Decorates a GoConvey test to check a set of `ConveyRequirement`s,
	returning a dummy test func that skips (with an explanation!) if any
	of the requirements are unsatisfied; if all is well, it yields
	the real test function unchanged.  Provide the `...ConveyRequirement`s
	first, followed by the `func()` (like the argument order in `Convey`).
*/
func Requires(items ...interface{}) func(c convey.C) {
	// not the most robust parsing.  just panics if there's weird stuff
	var requirements []ConveyRequirement
	for _, it := range items {
		if req, ok := it.(ConveyRequirement); ok {
			requirements = append(requirements, req)
		} else {
			break
		}
	}
	action := items[len(items)-1]
	var widest int
	for _, req := range requirements {
		if len(req.Name) > widest {
			widest = len(req.Name)
		}
	}
	var requirementsListing bytes.Buffer
	var names []string
	allSat := true
	for _, req := range requirements {
		sat := req.Predicate()
		allSat = allSat && sat
		names = append(names, req.Name)
		fmt.Fprintf(&requirementsListing, "requirement %*q: %v\n", widest+2, req.Name, sat)
	}
	if allSat {
		return func(c convey.C) {
			switch action := action.(type) {
			case func():
				action()
			case func(c convey.C):
				action(c)
			}
		}
	}
	title := "Prereqs: " + strings.Join(names, ", ")
	return func(c convey.C) {
		convey.Convey(title, nil)
		c.Println()
		c.Print(requirementsListing.String())
	}
}
