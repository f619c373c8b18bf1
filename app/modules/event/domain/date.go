package eventdomain

import (
	"errors"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrUnrecognizedDate is returned when a date input cannot be parsed.
var ErrUnrecognizedDate = errors.New("unrecognized date")

var layouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04",
	"02/01/2006",
}

var parser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseEventDate accepts an ISO date, an RFC 3339 timestamp, a day-first date or natural
// language ("next saturday", "tomorrow") relative to now. The result is the calendar day at
// midnight UTC.
func ParseEventDate(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, ErrUnrecognizedDate
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, input); err == nil {
			return day(t), nil
		}
	}
	r, err := parser.Parse(strings.ToLower(input), now)
	if err != nil || r == nil {
		return time.Time{}, ErrUnrecognizedDate
	}
	return day(r.Time), nil
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
