package lock

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	. "github.com/warpfork/go-errcat"
	"golang.org/x/sys/unix"

	"github.com/Maheshkerai/update-generator"
)

/*
	FileLocker holds an exclusive flock on `<Dir>/<name>.lock`.

	The kernel drops the flock when the fd closes, including when the process
	dies, so a crashed run never leaves a stale lock behind.  The zero-byte
	lock file itself is left in place.
*/
type FileLocker struct {
	Dir string // os.TempDir() when empty
}

func (l *FileLocker) Acquire(ctx context.Context, name string) (Release, error) {
	dir := l.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, name+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, Errorf(updategen.ErrIO, "cannot open lock file %s: %s", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, Errorf(updategen.ErrBusy, "another run holds %s", path)
		}
		return nil, Errorf(updategen.ErrIO, "cannot lock %s: %s", path, err)
	}
	var once sync.Once
	return func() (err error) {
		once.Do(func() {
			unix.Flock(int(f.Fd()), unix.LOCK_UN)
			if cerr := f.Close(); cerr != nil {
				err = Errorf(updategen.ErrIO, "cannot release lock %s: %s", path, cerr)
			}
		})
		return
	}, nil
}
