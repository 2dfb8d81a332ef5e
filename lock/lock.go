/*
	Package lock keeps two workflow runs from writing into the same
	output directory at once.

	A held lock is never waited on: the second run fails fast with ErrBusy,
	since a packaging run can take minutes and the caller is usually a
	human at a terminal who would rather know.
*/
package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"

	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
)

// Release gives up a held lock.  It is safe to call more than once.
type Release func() error

type Locker interface {
	// Acquire takes the lock called name, or fails with ErrBusy if
	// someone else holds it.
	Acquire(ctx context.Context, name string) (Release, error)
}

type Mode string

const (
	Mode_None  = Mode("none")
	Mode_File  = Mode("file")
	Mode_Redis = Mode("redis")
)

// Options configure New.  RedisURL and TTL only matter for Mode_Redis;
// Dir only for Mode_File.
type Options struct {
	Mode     Mode
	Dir      string
	RedisURL string
	TTL      time.Duration
}

func New(ctx context.Context, opts Options) (Locker, error) {
	switch opts.Mode {
	case Mode_None:
		return Noop{}, nil
	case Mode_File, "":
		return &FileLocker{Dir: opts.Dir}, nil
	case Mode_Redis:
		return NewRedisLocker(ctx, opts.RedisURL, opts.TTL)
	default:
		return nil, Errorf(updategen.ErrConfig, "unknown lock mode %q", opts.Mode)
	}
}

// NameFor derives a lock name from an output directory, so every run
// targeting the same directory contends for the same lock.
func NameFor(outputDir string) string {
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		abs = outputDir
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return "update-generator-" + hex.EncodeToString(sum[:8])
}

type Noop struct{}

func (Noop) Acquire(context.Context, string) (Release, error) {
	return func() error { return nil }, nil
}
