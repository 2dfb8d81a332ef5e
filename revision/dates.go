package revision

import (
	"time"

	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
)

// Window is a validated pair of instants, Start not after End.
type Window struct {
	Start time.Time
	End   time.Time
}

// gitTimeFormat is what we hand to `--before`; git parses it unambiguously.
const gitTimeFormat = "2006-01-02 15:04:05 -0700"

var dateLayouts = []struct {
	layout  string
	dayOnly bool
}{
	{"2006-01-02", true},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02T15:04:05", false},
	{time.RFC3339, false},
}

/*
	ParseDate reads the date forms accepted on the command line.

	A bare calendar date means the end of that day, local time, so that
	"--end_date 2024-03-31" includes commits made during the 31st.
	Values without a zone are local time too.
*/
func ParseDate(s string) (time.Time, error) {
	for _, l := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if l.layout == time.RFC3339 {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, time.Local)
		}
		if err != nil {
			continue
		}
		if l.dayOnly {
			t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.Local)
		}
		return t, nil
	}
	return time.Time{}, Errorf(updategen.ErrDate, "invalid date %q: use YYYY-MM-DD", s)
}

func ParseWindow(startDate, endDate string) (Window, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return Window{}, err
	}
	end, err := ParseDate(endDate)
	if err != nil {
		return Window{}, err
	}
	if start.After(end) {
		return Window{}, Errorf(updategen.ErrDate, "start date %s is after end date %s", startDate, endDate)
	}
	return Window{start, end}, nil
}
