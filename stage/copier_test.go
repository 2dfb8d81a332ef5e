package stage

import (
	"bytes"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
	"github.com/Maheshkerai/update-generator/fs"
	"github.com/Maheshkerai/update-generator/sanitize"
	"github.com/Maheshkerai/update-generator/testutil"
)

func projectFixture(root fs.AbsolutePath) {
	testutil.WriteTree(root, map[string]string{
		"app/Models/User.php":                "<?php // user",
		"app/Http/Kernel.php":                "<?php // kernel",
		"config/app.php":                     "<?php return [];",
		"routes/web.php":                     "<?php // routes",
		"storage/framework/sessions/abc":     "session",
		"storage/app/sessions/keep.txt":      "not a framework session",
		"storage/logs/laravel.log":           "log",
		"vendor/autoload.php":                "<?php // autoload",
		"composer.json":                      `{"name":"acme/app"}`,
		"artisan":                            "#!/usr/bin/env php",
		".env":                               "APP_NAME=Acme\nAPP_DEBUG=true\nAPP_KEY=base64:supersecret\n",
		"node_modules/lodash/index.js":       "module.exports = {}",
		"public/build/manifest.json":         "{}",
	})
}

func TestCopySelected(t *testing.T) {
	Convey("CopySelected:", t, func() {
		testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
			src := tmpDir.Join(fs.MustRelPath("project"))
			dst := tmpDir.Join(fs.MustRelPath("staging"))
			projectFixture(src)
			c := &Copier{SourceRoot: src.String(), AlwaysInclude: []string{"composer.json"}}

			Convey("copies each selected file to the same relative path", func() {
				n, err := c.CopySelected([]string{"app/Models/User.php", "routes/web.php", ""}, dst.String(), nil)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
				So(testutil.ListTree(dst), ShouldResemble, []string{
					"app/Models/User.php",
					"composer.json",
					"routes/web.php",
				})
				So(testutil.ShouldReadFile(dst.Join(fs.MustRelPath("app/Models/User.php")).String()), ShouldEqual, "<?php // user")
			})
			Convey("excluded paths are skipped but always-include paths are not", func() {
				n, err := c.CopySelected([]string{"app/Models/User.php", "composer.json", "config/app.php"}, dst.String(), []string{"composer.json", "config"})
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				So(testutil.ListTree(dst), ShouldResemble, []string{
					"app/Models/User.php",
					"composer.json",
				})
			})
			Convey("directories are copied recursively, with exclusions at depth", func() {
				n, err := c.CopySelected([]string{"storage"}, dst.String(), []string{"storage/framework/sessions", "*.log"})
				So(err, ShouldBeNil)
				So(testutil.ListTree(dst), ShouldResemble, []string{
					"composer.json",
					"storage/app/sessions/keep.txt",
					"storage/framework/",
					"storage/logs/",
				})
				So(n, ShouldEqual, 2)
			})
			Convey("missing files are skipped, not fatal", func() {
				n, err := c.CopySelected([]string{"app/Deleted.php", "routes/web.php"}, dst.String(), nil)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
			Convey("paths escaping the project are ignored", func() {
				n, err := c.CopySelected([]string{"../outside", "/etc/passwd"}, dst.String(), nil)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
			Convey("a directory whose destination lands inside it is skipped", func() {
				inside := src.Join(fs.MustRelPath("storage/app/update_files/.update_temp-x"))
				n, err := c.CopySelected([]string{"storage", "routes/web.php"}, inside.String(), nil)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				So(testutil.ListTree(inside), ShouldResemble, []string{
					"composer.json",
					"routes/web.php",
				})
			})
			Convey("the source itself is rejected as a destination", func() {
				_, err := c.CopySelected([]string{"routes/web.php"}, src.String(), nil)
				So(err, errcat.ErrorShouldHaveCategory, updategen.ErrPath)
			})
			Convey("a missing source root is a path error", func() {
				c.SourceRoot = tmpDir.Join(fs.MustRelPath("nope")).String()
				_, err := c.CopySelected([]string{"routes/web.php"}, dst.String(), nil)
				So(err, errcat.ErrorShouldHaveCategory, updategen.ErrPath)
			})
			Convey("the env file is sanitized in the copy only", func() {
				c.Sanitizer = &sanitize.Sanitizer{
					Rules: sanitize.Rules{"APP_DEBUG": "false", "APP_KEY": ""},
					Rand:  bytes.NewReader(make([]byte, 64)),
				}
				_, err := c.CopySelected([]string{".env"}, dst.String(), nil)
				So(err, ShouldBeNil)
				So(testutil.ShouldReadFile(dst.Join(fs.MustRelPath(".env")).String()), ShouldEqual, "APP_NAME=Acme\nAPP_DEBUG=false\nAPP_KEY=\n")
				So(testutil.ShouldReadFile(src.Join(fs.MustRelPath(".env")).String()), ShouldContainSubstring, "supersecret")
			})
			Convey("symlinks are copied as links", func() {
				So(os.Symlink("../storage/app", src.Join(fs.MustRelPath("public/storage")).String()), ShouldBeNil)
				n, err := c.CopySelected([]string{"public/storage"}, dst.String(), nil)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				target, err := os.Readlink(dst.Join(fs.MustRelPath("public/storage")).String())
				So(err, ShouldBeNil)
				So(target, ShouldEqual, "../storage/app")
			})
		})
	})
}

func TestCopyAll(t *testing.T) {
	Convey("CopyAll:", t, func() {
		testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
			src := tmpDir.Join(fs.MustRelPath("project"))
			projectFixture(src)
			c := &Copier{}

			Convey("copies the installation layout only", func() {
				dst := tmpDir.Join(fs.MustRelPath("install"))
				n, err := c.CopyAll(src.String(), dst.String(), []string{"storage/framework/sessions", "storage/logs", "vendor"})
				So(err, ShouldBeNil)
				So(testutil.ListTree(dst), ShouldResemble, []string{
					".env",
					"app/Http/Kernel.php",
					"app/Models/User.php",
					"artisan",
					"composer.json",
					"config/app.php",
					"public/build/manifest.json",
					"routes/web.php",
					"storage/app/sessions/keep.txt",
					"storage/framework/",
				})
				So(n, ShouldEqual, 9)
			})
			Convey("a custom layout replaces the default", func() {
				dst := tmpDir.Join(fs.MustRelPath("install"))
				c.Layout = Layout{Directories: []string{"routes"}, Files: []string{"artisan"}}
				n, err := c.CopyAll(src.String(), dst.String(), nil)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				So(testutil.ListTree(dst), ShouldResemble, []string{"artisan", "routes/web.php"})
			})
			Convey("a destination nested in the source is rejected", func() {
				for _, nested := range []string{"", "storage", "storage/app/deep/er/install"} {
					dst := src.Join(fs.MustRelPath(nested))
					_, err := c.CopyAll(src.String(), dst.String(), nil)
					So(err, errcat.ErrorShouldHaveCategory, updategen.ErrPath)
				}
				_, err := os.Stat(src.Join(fs.MustRelPath("storage/app/deep")).String())
				So(os.IsNotExist(err), ShouldBeTrue)
			})
			Convey("nesting through a symlink is rejected too", func() {
				link := tmpDir.Join(fs.MustRelPath("alias"))
				So(os.Symlink(src.String(), link.String()), ShouldBeNil)
				_, err := c.CopyAll(src.String(), link.Join(fs.MustRelPath("storage/out")).String(), nil)
				So(err, errcat.ErrorShouldHaveCategory, updategen.ErrPath)
			})
			Convey("a missing source is a path error", func() {
				_, err := c.CopyAll(tmpDir.Join(fs.MustRelPath("missing")).String(), tmpDir.Join(fs.MustRelPath("install")).String(), nil)
				So(err, errcat.ErrorShouldHaveCategory, updategen.ErrPath)
			})
		})
	})
}
