package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/smartystreets/goconvey/convey"

	"github.com/Maheshkerai/update-generator/fs"
)

/*
	Creates a temp dir, hands it to the func, and removes it afterwards.
	The path handed over has symlinks resolved (macOS puts TMPDIR behind one),
	so tests can compare it with canonicalized paths directly.
*/
func WithTmpdir(fn func(tmpDir fs.AbsolutePath)) {
	dir, err := os.MkdirTemp("", "updategen-test-")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		panic(err)
	}
	fn(fs.MustAbsolutePath(resolved))
}

// WriteTree creates files under base; keys are slash paths, values are bodies.
// A key ending in "/" makes an empty directory.
func WriteTree(base fs.AbsolutePath, files map[string]string) {
	for name, body := range files {
		full := filepath.Join(base.String(), filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			convey.So(os.MkdirAll(full, 0755), convey.ShouldBeNil)
			continue
		}
		convey.So(os.MkdirAll(filepath.Dir(full), 0755), convey.ShouldBeNil)
		convey.So(os.WriteFile(full, []byte(body), 0644), convey.ShouldBeNil)
	}
}

// ListTree returns every file and symlink under base as sorted slash paths.
// Directories are listed only when empty, with a trailing slash.
func ListTree(base fs.AbsolutePath) []string {
	var result []string
	err := filepath.Walk(base.String(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(base.String(), path)
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			entries, err := os.ReadDir(path)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				result = append(result, rel+"/")
			}
			return nil
		}
		result = append(result, rel)
		return nil
	})
	convey.So(err, convey.ShouldBeNil)
	sort.Strings(result)
	return result
}

func ShouldReadFile(path string) string {
	body, err := os.ReadFile(path)
	convey.So(err, convey.ShouldBeNil)
	return string(body)
}

func ShouldStat(afs fs.FS, path fs.RelPath) fs.Metadata {
	stat, err := afs.LStat(path)
	convey.So(err, convey.ShouldBeNil)
	stat.Mtime = stat.Mtime.UTC()
	return *stat
}
