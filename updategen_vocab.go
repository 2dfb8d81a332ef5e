package updategen

import (
	"github.com/warpfork/go-errcat"
)

// Types in this file are the shared error vocabulary of every package
// in update-generator, and the process exit codes they map onto.

type ErrorCategory string
type ExitCode int

const (
	ExitSuccess                   = ExitCode(0)
	ExitValidation, ErrValidation = ExitCode(1), ErrorCategory("updategen-validation-error") // Some piece of user input was invalid, or the workflow had nothing to package.
	ExitPanic                     = ExitCode(2)                                              // Placeholder.  '2' happens when golang exits due to panic.
	ExitDate, ErrDate             = ExitCode(3), ErrorCategory("updategen-invalid-date")     // A date could not be parsed, or the range is inverted.
	ExitRepository, ErrRepository = ExitCode(4), ErrorCategory("updategen-repository-error") // Not a repository, no commit for a date, a git command failed or timed out.
	ExitPath, ErrPath             = ExitCode(5), ErrorCategory("updategen-path-error")       // A source path is missing, or a destination would nest inside its source.
	ExitArchive, ErrArchive       = ExitCode(6), ErrorCategory("updategen-archive-error")    // The archive writer failed, or an input to it is missing.
	ExitIO, ErrIO                 = ExitCode(7), ErrorCategory("updategen-io-error")         // Filesystem failures outside the copy loop (mkdir, metadata writes).
	ExitBusy, ErrBusy             = ExitCode(8), ErrorCategory("updategen-busy")             // Another workflow holds the lock on the output directory.
	ExitConfig, ErrConfig         = ExitCode(9), ErrorCategory("updategen-config-error")     // The configuration file was unreadable or failed schema validation.
	ExitUnknown                   = ExitCode(254)                                            // An error without a category escaped; this is a bug.
)

// ExitCodeForCategory maps an error category onto the process exit code
// the command line reports for it.
func ExitCodeForCategory(category interface{}) ExitCode {
	switch category {
	case nil:
		return ExitSuccess
	case ErrValidation:
		return ExitValidation
	case ErrDate:
		return ExitDate
	case ErrRepository:
		return ExitRepository
	case ErrPath:
		return ExitPath
	case ErrArchive:
		return ExitArchive
	case ErrIO:
		return ExitIO
	case ErrBusy:
		return ExitBusy
	case ErrConfig:
		return ExitConfig
	default:
		return ExitUnknown
	}
}

// ExitCodeForError is ExitCodeForCategory for a whole error value.
// A non-nil error never maps onto success, even when it carries no category.
func ExitCodeForError(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	code := ExitCodeForCategory(errcat.Category(err))
	if code == ExitSuccess {
		return ExitUnknown
	}
	return code
}

// PackageType names the kinds of artifact a run can produce.
type PackageType string

const (
	PackageType_Update       = PackageType("update")
	PackageType_Installation = PackageType("new")
	PackageType_Both         = PackageType("both")
)

// Artifact describes one archive written by a workflow.
type Artifact struct {
	Type PackageType
	Path string
}
