/*
	Package stage materializes a selection of project files into a staging
	directory, the tree an archive is then built from.

	Exclusion rules are applied to paths relative to the copy root at
	every level of a recursive copy, so "storage/framework/sessions" can
	be excluded without touching any other "sessions" directory.

	Copy failures of individual entries are logged and skipped; only
	broken preconditions (missing source, a destination nested in its
	source) fail the whole copy.
*/
package stage

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
	"github.com/Maheshkerai/update-generator/filters"
	"github.com/Maheshkerai/update-generator/fs"
	"github.com/Maheshkerai/update-generator/fs/osfs"
	"github.com/Maheshkerai/update-generator/fsOp"
	"github.com/Maheshkerai/update-generator/sanitize"
)

// Layout lists the top-level entries of a full installation.
type Layout struct {
	Directories []string
	Files       []string
}

var DefaultLayout = Layout{
	Directories: []string{
		"app", "bootstrap", "config", "database", "lang", "public",
		"resources", "routes", "storage", "vendor", "tests",
	},
	Files: []string{
		".env", ".env.example", ".editorconfig", ".gitattributes", ".gitignore",
		"artisan", "composer.json", "composer.lock", "package.json", "package-lock.json",
		"phpunit.xml", "README.md", "webpack.mix.js", "vite.config.js",
	},
}

type Copier struct {
	SourceRoot    string              // project root for CopySelected
	AlwaysInclude []string            // copied by CopySelected regardless of exclusions
	EnvFile       string              // relative path sanitized after copying; ".env" when empty
	Sanitizer     *sanitize.Sanitizer // nil disables sanitization
	Layout        Layout              // DefaultLayout when empty
	Log           *log.Logger
}

/*
	CopySelected copies each path of a change set from SourceRoot to the
	same relative path under destRoot, skipping excluded paths.  Then every
	AlwaysInclude path that exists is copied too, with no exclusions.
	Directories are copied recursively.

	Returns the number of files (and symlinks) placed.
*/
func (c *Copier) CopySelected(paths []string, destRoot string, rules []string) (_ int, err error) {
	defer RequireErrorHasCategory(&err, updategen.ErrorCategory(""))

	src, dst, err := c.prepare(c.SourceRoot, destRoot)
	if err != nil {
		return 0, err
	}
	if src == dst {
		return 0, Errorf(updategen.ErrPath, "destination %s is the source itself", dst)
	}
	run := c.newRun(src, dst, filters.NewMatcher(rules))

	for _, p := range paths {
		rel, ok := run.parse(p)
		if !ok {
			continue
		}
		if rule, skip := run.matcher.Match(rel.Slash()); skip {
			run.log.Debug("excluded", "path", rel.Slash(), "rule", rule)
			continue
		}
		run.copyTree(rel)
	}

	always := c.newRun(src, dst, nil)
	always.placed = run.placed // a path both selected and always-included counts once
	for _, p := range c.AlwaysInclude {
		rel, ok := always.parse(p)
		if !ok {
			continue
		}
		if _, err := os.Lstat(src.Join(rel).String()); err != nil {
			always.log.Debug("always-include path not present", "path", rel.Slash())
			continue
		}
		always.log.Info("always-included path", "path", rel.Slash())
		always.copyTree(rel)
	}

	total := len(run.placed)
	c.logger().Info("staged change set", "requested", len(paths), "copied", total, "failed", run.failed+always.failed)
	return total, nil
}

/*
	CopyAll copies the installation Layout from sourceRoot into destRoot,
	skipping excluded paths.

	Fails with ErrPath if sourceRoot is missing, or if destRoot is (or would
	be) inside sourceRoot once symlinks are resolved: copying a tree into
	itself never terminates.
*/
func (c *Copier) CopyAll(sourceRoot, destRoot string, rules []string) (_ int, err error) {
	defer RequireErrorHasCategory(&err, updategen.ErrorCategory(""))

	src, err := fs.Canonical(sourceRoot)
	if err != nil {
		return 0, Errorf(updategen.ErrPath, "cannot resolve source %s: %s", sourceRoot, err)
	}
	dst, err := fs.Canonical(destRoot)
	if err != nil {
		return 0, Errorf(updategen.ErrPath, "cannot resolve destination %s: %s", destRoot, err)
	}
	if src.Contains(dst) {
		return 0, Errorf(updategen.ErrPath, "destination %s is inside source %s", dst, src)
	}
	if _, _, err := c.prepare(sourceRoot, destRoot); err != nil {
		return 0, err
	}
	run := c.newRun(src, dst, filters.NewMatcher(rules))

	layout := c.Layout
	if len(layout.Directories) == 0 && len(layout.Files) == 0 {
		layout = DefaultLayout
	}
	for _, group := range [][]string{layout.Directories, layout.Files} {
		for _, p := range group {
			rel, ok := run.parse(p)
			if !ok {
				continue
			}
			if rule, skip := run.matcher.Match(rel.Slash()); skip {
				run.log.Debug("excluded", "path", rel.Slash(), "rule", rule)
				continue
			}
			if _, err := os.Lstat(src.Join(rel).String()); err != nil {
				run.log.Debug("layout entry not present", "path", rel.Slash())
				continue
			}
			run.copyTree(rel)
		}
	}
	c.logger().Info("staged installation", "source", src.String(), "copied", len(run.placed), "failed", run.failed)
	return len(run.placed), nil
}

// prepare checks the source exists and creates the destination root.
func (c *Copier) prepare(sourceRoot, destRoot string) (fs.AbsolutePath, fs.AbsolutePath, error) {
	src, err := fs.Canonical(sourceRoot)
	if err != nil {
		return src, fs.AbsolutePath{}, Errorf(updategen.ErrPath, "cannot resolve source %s: %s", sourceRoot, err)
	}
	info, err := os.Stat(src.String())
	if err != nil {
		return src, fs.AbsolutePath{}, Errorf(updategen.ErrPath, "source %s does not exist", sourceRoot)
	}
	if !info.IsDir() {
		return src, fs.AbsolutePath{}, Errorf(updategen.ErrPath, "source %s is not a directory", sourceRoot)
	}
	if err := os.MkdirAll(destRoot, 0755); err != nil {
		return src, fs.AbsolutePath{}, Errorf(updategen.ErrIO, "cannot create staging dir %s: %s", destRoot, err)
	}
	dst, err := fs.Canonical(destRoot)
	if err != nil {
		return src, fs.AbsolutePath{}, Errorf(updategen.ErrPath, "cannot resolve destination %s: %s", destRoot, err)
	}
	return src, dst, nil
}

func (c *Copier) envFile() string {
	if c.EnvFile == "" {
		return ".env"
	}
	return strings.TrimPrefix(c.EnvFile, "./")
}

func (c *Copier) logger() *log.Logger {
	if c.Log == nil {
		return log.New(io.Discard)
	}
	return c.Log
}

// copyRun carries the state of one CopySelected or CopyAll call.
type copyRun struct {
	c       *Copier
	src     fs.AbsolutePath
	dst     fs.AbsolutePath
	dstFS   fs.FS
	matcher *filters.Matcher
	log     *log.Logger
	placed  map[fs.RelPath]struct{} // files and symlinks
	failed  int
}

func (c *Copier) newRun(src, dst fs.AbsolutePath, matcher *filters.Matcher) *copyRun {
	return &copyRun{
		c:       c,
		src:     src,
		dst:     dst,
		dstFS:   osfs.New(dst),
		matcher: matcher,
		log:     c.logger(),
		placed:  map[fs.RelPath]struct{}{},
	}
}

func (r *copyRun) parse(p string) (fs.RelPath, bool) {
	p = strings.TrimSpace(p)
	if p == "" {
		return fs.RelPath{}, false
	}
	rel, err := fs.ParseRelPath(p)
	if err != nil || rel.GoesUp() || rel == (fs.RelPath{}) {
		r.log.Warn("ignoring path outside the project", "path", p)
		return fs.RelPath{}, false
	}
	return rel, true
}

/*
	copyTree copies the entry at `root` (relative to the copy source) and,
	if it is a directory, everything beneath it.

	Each directory re-checks that its own destination is not inside it;
	this catches staging dirs that live within the project (the default
	output directory is under storage/) as well as symlinks pointing back
	up the tree.
*/
func (r *copyRun) copyTree(root fs.RelPath) {
	srcFS := osfs.New(r.src.Join(root))
	dirMtimes := map[fs.RelPath]*fs.Metadata{}

	preVisit := func(node *fs.FilewalkNode) error {
		full := root.Join(node.Path)
		if node.Err != nil {
			r.fail(full, node.Err)
			return fs.SkipNode
		}
		if node.Path != (fs.RelPath{}) {
			if rule, skip := r.matcher.Match(full.Slash()); skip {
				r.log.Debug("excluded", "path", full.Slash(), "rule", rule)
				return fs.SkipNode
			}
		}
		fmeta := *node.Info
		if fmeta.Type == fs.Type_Dir {
			if r.nestsInto(full) {
				r.log.Warn("skipping directory that contains the staging destination", "path", full.Slash())
				return fs.SkipNode
			}
			dirMtimes[node.Path] = node.Info
			// Placing children would bump the mtime; it is set in postVisit.
			fmeta.Mtime = time.Time{}
			if err := fsOp.CopyEntryAs(srcFS, r.dstFS, fmeta, full); err != nil {
				r.fail(full, err)
				delete(dirMtimes, node.Path)
				return fs.SkipNode
			}
			return nil
		}
		if err := fsOp.CopyEntryAs(srcFS, r.dstFS, fmeta, full); err != nil {
			r.fail(full, err)
			return nil
		}
		if full.Slash() == r.c.envFile() && r.c.Sanitizer != nil && fmeta.Type == fs.Type_File {
			if _, err := r.c.Sanitizer.SanitizeFile(r.dst.Join(full).String()); err != nil {
				// Never ship an unsanitized environment file.
				os.Remove(r.dst.Join(full).String())
				r.fail(full, err)
				return nil
			}
		}
		r.placed[full] = struct{}{}
		return nil
	}
	postVisit := func(node *fs.FilewalkNode) error {
		if fmeta, ok := dirMtimes[node.Path]; ok {
			// Children are in; now the dir's own mtime can stick.
			if err := r.dstFS.SetTimesNano(root.Join(node.Path), fmeta.Mtime); err != nil {
				r.log.Debug("cannot restore directory mtime", "path", root.Join(node.Path).Slash(), "err", err)
			}
		}
		return nil
	}
	// Visit funcs never return errors other than SkipNode; a failure here
	// is the walk itself being unable to list a directory.
	if err := fs.Walk(srcFS, preVisit, postVisit); err != nil {
		r.fail(root, err)
	}
}

// nestsInto is true if the destination for the source dir at `rel`
// would land inside that source dir.
func (r *copyRun) nestsInto(rel fs.RelPath) bool {
	srcDir, err := fs.Canonical(r.src.Join(rel).String())
	if err != nil {
		return false
	}
	dstDir, err := fs.Canonical(r.dst.Join(rel).String())
	if err != nil {
		return false
	}
	return srcDir.Contains(dstDir)
}

func (r *copyRun) fail(path fs.RelPath, err error) {
	r.failed++
	r.log.Warn("failed to copy", "path", path.Slash(), "err", err)
}
