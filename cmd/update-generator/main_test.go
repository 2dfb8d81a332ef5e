package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Maheshkerai/update-generator"
	"github.com/Maheshkerai/update-generator/bundle"
	"github.com/Maheshkerai/update-generator/fs"
	"github.com/Maheshkerai/update-generator/testutil"
	"github.com/Maheshkerai/update-generator/versioninfo"
)

func run(args ...string) (updategen.ExitCode, string, string) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	exitCode := Main(context.Background(), append([]string{"update-generator"}, args...), &bytes.Buffer{}, stdout, stderr)
	return exitCode, stdout.String(), stderr.String()
}

func TestWithoutArgs(t *testing.T) {
	Convey("update-generator: usage printed to stderr", t, func() {
		exitCode, stdout, stderr := run()
		So(stdout, ShouldBeBlank)
		So(stderr, ShouldContainSubstring, "usage: update-generator [<flags>] <command> [<args> ...]")
		So(exitCode, ShouldEqual, updategen.ExitValidation)
	})
}

func TestGenerateInputValidation(t *testing.T) {
	Convey("update-generator generate: input checks", t, func() {
		Convey("an unknown type is a validation error", func() {
			exitCode, _, stderr := run("generate", "--type=patch", "--update_version=1.1.0")
			So(exitCode, ShouldEqual, updategen.ExitValidation)
			So(stderr, ShouldContainSubstring, "invalid type: patch")
		})
		Convey("update packages need dates and a current version", func() {
			exitCode, _, stderr := run("generate", "--type=update", "--update_version=1.1.0")
			So(exitCode, ShouldEqual, updategen.ExitValidation)
			So(stderr, ShouldContainSubstring, "start date is required")

			exitCode, _, stderr = run("generate", "--start_date=2025-01-01", "--end_date=2025-03-31", "--update_version=1.1.0")
			So(exitCode, ShouldEqual, updategen.ExitValidation)
			So(stderr, ShouldContainSubstring, "current version is required")
		})
		Convey("every type needs an update version", func() {
			exitCode, _, stderr := run("generate", "--type=new")
			So(exitCode, ShouldEqual, updategen.ExitValidation)
			So(stderr, ShouldContainSubstring, "update version is required")
		})
		Convey("json output carries the error category", func() {
			exitCode, stdout, _ := run("--format=json", "generate", "--type=new")
			So(exitCode, ShouldEqual, updategen.ExitValidation)
			So(stdout, ShouldContainSubstring, string(updategen.ErrValidation))
		})
	})
}

func writeProjectConfig(tmpDir fs.AbsolutePath) string {
	project := tmpDir.Join(fs.MustRelPath("project"))
	testutil.WriteTree(project, map[string]string{
		"app/Models/User.php": "<?php // user",
		"routes/web.php":      "<?php // routes",
		"artisan":             "#!/usr/bin/env php",
	})
	temp := tmpDir.Join(fs.MustRelPath("tmp"))
	So(os.MkdirAll(temp.String(), 0755), ShouldBeNil)
	path := filepath.Join(tmpDir.String(), "updgen.yaml")
	So(os.WriteFile(path, []byte(fmt.Sprintf(`
project_root: %q
temp_directory: %q
enable_logging: false
metrics_textfile: %q
lock:
  mode: none
`, project, temp, filepath.Join(tmpDir.String(), "updgen.prom"))), 0644), ShouldBeNil)
	return path
}

func TestGenerateInstallation(t *testing.T) {
	Convey("update-generator generate --type=new", t, testutil.Requires(
		testutil.RequiresEnvBlank("UPDGEN_PROJECT_ROOT"),
		testutil.RequiresEnvBlank("UPDGEN_TEMP_DIR"),
		testutil.RequiresEnvBlank("UPDGEN_LOCK_MODE"),
		func() {
			testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
				configPath := writeProjectConfig(tmpDir)
				outputDir := filepath.Join(tmpDir.String(), "project", "storage", "app", "update_files")

				Convey("prints a table of generated files", func() {
					exitCode, stdout, stderr := run("--config", configPath, "generate", "--type=new", "--update_version=1.1.0")
					So(stderr, ShouldBeBlank)
					So(exitCode, ShouldEqual, updategen.ExitSuccess)
					So(stdout, ShouldContainSubstring, "Generated File")
					So(stdout, ShouldContainSubstring, "New_Installation_V1.1.0.zip")
					So(stdout, ShouldContainSubstring, outputDir)

					entries := testutil.ShouldReadZip(filepath.Join(outputDir, "New_Installation_V1.1.0.zip"))
					So(entries["app/Models/User.php"], ShouldEqual, "<?php // user")
					So(entries["artisan"], ShouldEqual, "#!/usr/bin/env php")

					Convey("and writes metrics", func() {
						prom := testutil.ShouldReadFile(filepath.Join(tmpDir.String(), "updgen.prom"))
						So(prom, ShouldContainSubstring, `update_generator_packages_total{outcome="success",type="new"} 1`)
					})
				})
				Convey("reports results as json", func() {
					exitCode, stdout, _ := run("--config", configPath, "--format=json", "generate", "--type=new", "--update_version=1.1.0")
					So(exitCode, ShouldEqual, updategen.ExitSuccess)
					So(stdout, ShouldContainSubstring, "New_Installation_V1.1.0.zip")
					So(stdout, ShouldNotContainSubstring, `"error"`)
				})
				Convey("an invalid version exits with a validation error and writes nothing", func() {
					exitCode, _, stderr := run("--config", configPath, "generate", "--type=new", "--update_version=invalid")
					So(exitCode, ShouldEqual, updategen.ExitValidation)
					So(stderr, ShouldContainSubstring, "invalid version")
					_, err := os.Stat(outputDir)
					So(os.IsNotExist(err), ShouldBeTrue)
				})
				Convey("a bad config file is a config error", func() {
					bad := filepath.Join(tmpDir.String(), "bad.yaml")
					So(os.WriteFile(bad, []byte("git_timeout: never\n"), 0644), ShouldBeNil)
					exitCode, _, _ := run("--config", bad, "generate", "--type=new", "--update_version=1.1.0")
					So(exitCode, ShouldEqual, updategen.ExitConfig)
				})
			})
		}))
}

func TestInspect(t *testing.T) {
	Convey("update-generator inspect", t, func() {
		testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
			inner := filepath.Join(tmpDir.String(), "inner.zip")
			meta := filepath.Join(tmpDir.String(), "meta.php")
			outer := filepath.Join(tmpDir.String(), "Update 1.0.0-to-1.1.0.zip")
			testutil.WriteTree(tmpDir, map[string]string{"staging/routes/web.php": "<?php"})
			b := &bundle.Builder{}
			_, err := b.Build(context.Background(), filepath.Join(tmpDir.String(), "staging"), inner)
			So(err, ShouldBeNil)
			So(versioninfo.Write(meta, versioninfo.VersionInfo{CurrentVersion: "1.0.0", UpdateVersion: "1.1.0"}, versioninfo.Format_PHP), ShouldBeNil)
			So(b.BuildNested(inner, meta, outer, bundle.Entries{}), ShouldBeNil)

			Convey("lists entries and the decoded version info", func() {
				exitCode, stdout, _ := run("inspect", outer)
				So(exitCode, ShouldEqual, updategen.ExitSuccess)
				So(stdout, ShouldContainSubstring, "source_code.zip")
				So(stdout, ShouldContainSubstring, "version_info.php")
				So(stdout, ShouldContainSubstring, "1.1.0")
			})
			Convey("plain archives have no version info", func() {
				exitCode, stdout, _ := run("--format=json", "inspect", inner)
				So(exitCode, ShouldEqual, updategen.ExitSuccess)
				So(stdout, ShouldContainSubstring, "routes/web.php")
				So(stdout, ShouldNotContainSubstring, "version_info")
			})
			Convey("a missing archive is an archive error", func() {
				exitCode, _, _ := run("inspect", filepath.Join(tmpDir.String(), "nope.zip"))
				So(exitCode, ShouldEqual, updategen.ExitArchive)
			})
		})
	})
}
