package testutil

import (
	"archive/zip"
	"bytes"
	"io"
	"io/ioutil"

	"github.com/smartystreets/goconvey/convey"
)

// ShouldReadZip returns every entry of the archive at path, name -> body.
// Directory entries map to the empty string.
func ShouldReadZip(path string) map[string]string {
	r, err := zip.OpenReader(path)
	convey.So(err, convey.ShouldBeNil)
	defer r.Close()
	return readZip(&r.Reader)
}

// ShouldReadZipBytes is ShouldReadZip for an archive nested in another one.
func ShouldReadZipBytes(body string) map[string]string {
	r, err := zip.NewReader(bytes.NewReader([]byte(body)), int64(len(body)))
	convey.So(err, convey.ShouldBeNil)
	return readZip(r)
}

func readZip(r *zip.Reader) map[string]string {
	entries := make(map[string]string, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		convey.So(err, convey.ShouldBeNil)
		body, err := ioutil.ReadAll(io.LimitReader(rc, 64<<20))
		rc.Close()
		convey.So(err, convey.ShouldBeNil)
		entries[f.Name] = string(body)
	}
	return entries
}
