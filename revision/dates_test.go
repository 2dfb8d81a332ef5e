package revision

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
)

func TestParseDate(t *testing.T) {
	Convey("Date parsing:", t, func() {
		Convey("a bare date means the end of that day", func() {
			d, err := ParseDate("2024-03-31")
			So(err, ShouldBeNil)
			So(d, ShouldResemble, time.Date(2024, 3, 31, 23, 59, 59, 0, time.Local))
		})
		Convey("datetimes are taken as given", func() {
			d, err := ParseDate("2024-03-31 08:15:00")
			So(err, ShouldBeNil)
			So(d.Hour(), ShouldEqual, 8)
			d, err = ParseDate("2024-03-31T08:15:00Z")
			So(err, ShouldBeNil)
			So(d.Equal(time.Date(2024, 3, 31, 8, 15, 0, 0, time.UTC)), ShouldBeTrue)
		})
		Convey("garbage is a date error", func() {
			_, err := ParseDate("last tuesday")
			So(err, errcat.ErrorShouldHaveCategory, updategen.ErrDate)
			_, err = ParseDate("2024-02-30")
			So(err, errcat.ErrorShouldHaveCategory, updategen.ErrDate)
		})
	})
	Convey("Windows:", t, func() {
		w, err := ParseWindow("2024-01-01", "2024-01-01")
		So(err, ShouldBeNil)
		So(w.Start, ShouldResemble, w.End)

		_, err = ParseWindow("2024-02-01", "2024-01-01")
		So(err, errcat.ErrorShouldHaveCategory, updategen.ErrDate)
		_, err = ParseWindow("2024-01-01", "soon")
		So(err, errcat.ErrorShouldHaveCategory, updategen.ErrDate)
	})
}
