package sanitize

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Maheshkerai/update-generator/fs"
	"github.com/Maheshkerai/update-generator/testutil"
)

var laravelRules = Rules{
	"APP_DEBUG":   "false",
	"APP_KEY":     "",
	"DB_PASSWORD": "",
}

const sampleEnv = `APP_NAME=Laravel
APP_KEY=base64:c2VjcmV0c2VjcmV0c2VjcmV0c2VjcmV0c2VjcmV0
APP_DEBUG=true

# database
DB_CONNECTION=mysql
DB_PASSWORD="hunter2 with spaces"
export MAIL_PASSWORD=untouched
`

func TestSanitize(t *testing.T) {
	Convey("Sanitize:", t, func() {
		s := &Sanitizer{Rules: laravelRules}

		Convey("rewrites ruled keys and leaves the rest byte for byte", func() {
			out, changes, err := s.Sanitize([]byte(sampleEnv))
			So(err, ShouldBeNil)
			So(string(out), ShouldEqual, `APP_NAME=Laravel
APP_KEY=
APP_DEBUG=false

# database
DB_CONNECTION=mysql
DB_PASSWORD=
export MAIL_PASSWORD=untouched
`)
			So(changes, ShouldHaveLength, 3)
			So(changes[0], ShouldResemble, Change{Key: "APP_KEY", Old: "base64:c2VjcmV0c2VjcmV0c2VjcmV0c2VjcmV0c2VjcmV0", New: ""})
			So(changes[2].Old, ShouldEqual, `"hunter2 with spaces"`)
		})
		Convey("is idempotent for literal rules", func() {
			once, _, err := s.Sanitize([]byte(sampleEnv))
			So(err, ShouldBeNil)
			twice, _, err := s.Sanitize(once)
			So(err, ShouldBeNil)
			So(string(twice), ShouldEqual, string(once))
		})
		Convey("tolerates export prefixes and surrounding whitespace", func() {
			s := &Sanitizer{Rules: Rules{"MAIL_PASSWORD": "x"}}
			out, _, err := s.Sanitize([]byte("  export MAIL_PASSWORD = secret\n"))
			So(err, ShouldBeNil)
			So(string(out), ShouldEqual, "  export MAIL_PASSWORD =x\n")
		})
		Convey("comments that look like assignments are not touched", func() {
			out, changes, err := s.Sanitize([]byte("# APP_DEBUG=true\n"))
			So(err, ShouldBeNil)
			So(string(out), ShouldEqual, "# APP_DEBUG=true\n")
			So(changes, ShouldBeEmpty)
		})
		Convey("normalizes trailing newlines and keeps CRLF", func() {
			out, _, err := s.Sanitize([]byte("A=1\r\nAPP_DEBUG=true\r\n\r\n\r\n"))
			So(err, ShouldBeNil)
			So(string(out), ShouldEqual, "A=1\r\nAPP_DEBUG=false\r\n")

			out, _, err = s.Sanitize([]byte("A=1"))
			So(err, ShouldBeNil)
			So(string(out), ShouldEqual, "A=1\n")

			out, _, err = s.Sanitize(nil)
			So(err, ShouldBeNil)
			So(out, ShouldBeEmpty)
		})
		Convey("the secret placeholder generates a fresh application key", func() {
			s := &Sanitizer{
				Rules: Rules{"APP_KEY": SecretPlaceholder},
				Rand:  bytes.NewReader(bytes.Repeat([]byte{0xAB}, 32)),
			}
			out, changes, err := s.Sanitize([]byte("APP_KEY=old\n"))
			So(err, ShouldBeNil)
			So(changes, ShouldHaveLength, 1)
			So(changes[0].New, ShouldStartWith, "base64:")
			So(string(out), ShouldEqual, "APP_KEY="+changes[0].New+"\n")
			So(len(changes[0].New), ShouldEqual, len("base64:")+44)
		})
		Convey("a short random source is an error", func() {
			s := &Sanitizer{Rules: Rules{"APP_KEY": SecretPlaceholder}, Rand: strings.NewReader("short")}
			_, _, err := s.Sanitize([]byte("APP_KEY=old\n"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSanitizeFile(t *testing.T) {
	Convey("SanitizeFile rewrites in place and keeps permissions", t, func() {
		testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
			path := filepath.Join(tmpDir.String(), ".env")
			So(os.WriteFile(path, []byte(sampleEnv), 0600), ShouldBeNil)

			changes, err := (&Sanitizer{Rules: laravelRules}).SanitizeFile(path)
			So(err, ShouldBeNil)
			So(changes, ShouldHaveLength, 3)
			So(testutil.ShouldReadFile(path), ShouldContainSubstring, "APP_DEBUG=false\n")
			info, err := os.Stat(path)
			So(err, ShouldBeNil)
			So(info.Mode().Perm(), ShouldEqual, os.FileMode(0600))

			_, err = (&Sanitizer{Rules: laravelRules}).SanitizeFile(filepath.Join(tmpDir.String(), "missing"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMask(t *testing.T) {
	Convey("Mask:", t, func() {
		So(Mask("abcdefghij"), ShouldEqual, "ab******ij")
		So(Mask("abcde"), ShouldEqual, "ab*de")
		So(Mask("abc"), ShouldEqual, "***")
		So(Mask("abcd"), ShouldEqual, "****")
		So(Mask(""), ShouldEqual, "(empty)")
		So(Mask("pässwörtchen"), ShouldEqual, "pä********en")
	})
}
