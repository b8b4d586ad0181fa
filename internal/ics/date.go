package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"notionics/internal/model"
)

const (
	// DateLayout is the iCalendar DATE form.
	DateLayout = "20060102"
	// DateTimeLayout is the iCalendar UTC DATE-TIME form.
	DateTimeLayout = "20060102T150405Z"

	isoDate = "2006-01-02"
)

// ErrMalformedDate is returned when a date-time cannot be parsed, or when a
// date-only start cannot be advanced to synthesize an end.
var ErrMalformedDate = errors.New("malformed date")

// offsetLayouts are tried in order after a trailing "Z" has been rewritten
// to "+00:00". Fractional seconds are accepted by time.Parse even though
// the layouts do not spell them out.
var offsetLayouts = []string{
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04-07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	isoDate,
}

// DateRange is the raw start/end pair of a date property.
type DateRange struct {
	Start    string
	End      string
	TimeZone string
	// IsDateTime is a syntactic check: the start contains a "T".
	IsDateTime bool
}

// ParseRange extracts the date range from a date property. It reports false
// when the value is not a date or carries no start.
func ParseRange(v model.PropertyValue) (DateRange, bool) {
	if v.Kind != model.KindDate || v.Date == nil || v.Date.Start == "" {
		return DateRange{}, false
	}
	return DateRange{
		Start:      v.Date.Start,
		End:        v.Date.End,
		TimeZone:   v.Date.TimeZone,
		IsDateTime: strings.Contains(v.Date.Start, "T"),
	}, true
}

// Tokens returns the DTSTART/DTEND values for the range. A missing end
// becomes the start for timed events and start+1 day for all-day events.
func (r DateRange) Tokens() (start, end string, err error) {
	if r.IsDateTime {
		start, err = DateTimeToken(r.Start, r.TimeZone)
		if err != nil {
			return "", "", err
		}
		if r.End == "" {
			return start, start, nil
		}
		end, err = DateTimeToken(r.End, r.TimeZone)
		if err != nil {
			return "", "", err
		}
		return start, end, nil
	}

	start = DateToken(r.Start)
	if r.End != "" {
		return start, DateToken(r.End), nil
	}
	end, err = NextDay(start)
	if err != nil {
		return "", "", err
	}
	return start, end, nil
}

// StartInstant returns the absolute start used for ordering. All-day starts
// resolve to midnight UTC of that date.
func (r DateRange) StartInstant() (time.Time, error) {
	if r.IsDateTime {
		return ParseInstant(r.Start, r.TimeZone)
	}
	t, err := time.Parse(isoDate, r.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, r.Start)
	}
	return t, nil
}

// ToToken converts an ISO-8601 value into an iCalendar token: a UTC
// DATE-TIME when forceUTC is set, a DATE otherwise.
func ToToken(iso string, forceUTC bool) (string, error) {
	if !forceUTC {
		return DateToken(iso), nil
	}
	return DateTimeToken(iso, "")
}

// DateToken joins the dash-separated components of an ISO date. There is
// no calendar validation: malformed input yields malformed output.
func DateToken(iso string) string {
	return strings.Join(strings.Split(iso, "-"), "")
}

// DateTimeToken parses an ISO-8601 date-time and formats it in UTC.
// timeZone applies only to values without an offset.
func DateTimeToken(iso, timeZone string) (string, error) {
	t, err := ParseInstant(iso, timeZone)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(DateTimeLayout), nil
}

// ParseInstant parses an ISO-8601 date-time. A "Z" suffix is treated as
// "+00:00". Values without an offset are read in timeZone, or in the local
// zone when timeZone is empty or unknown.
func ParseInstant(iso, timeZone string) (time.Time, error) {
	s := strings.ReplaceAll(strings.TrimSpace(iso), "Z", "+00:00")
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	loc := resolveLocation(timeZone)
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, iso)
}

// NextDay advances a DATE token by one calendar day.
func NextDay(token string) (string, error) {
	t, err := time.Parse(DateLayout, token)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrMalformedDate, token)
	}
	return t.AddDate(0, 0, 1).Format(DateLayout), nil
}

func resolveLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}
