package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "notionics/internal/log"
)

// ParsedEvent is the read-back view of one VEVENT in an emitted feed.
// Date values are the raw tokens as written.
type ParsedEvent struct {
	UID     string
	Summary string
	Start   string
	End     string
	AllDay  bool
	PageID  string
}

// ParseFeed parses a serialized feed with a full iCalendar parser and
// returns its events. It is used to check a feed before publishing it.
func ParseFeed(body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "bytes", len(body))
		return nil, err
	}

	events := make([]ParsedEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			return nil, perr
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(VendorPageIDProperty); p != nil {
		out.PageID = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART: " + out.UID)
	}
	out.Start = dtStart.Value
	out.AllDay = isDateValue(dtStart)

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		out.End = dtEnd.Value
		if isDateValue(dtEnd) != out.AllDay {
			return out, errors.New("DTSTART and DTEND disagree on value type: " + out.UID)
		}
	}
	return out, nil
}

// isDateValue reports whether a DTSTART/DTEND holds a DATE (VALUE=DATE or
// no time component).
func isDateValue(p *ical.IANAProperty) bool {
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}

// Validate parses body and checks every event carries a UID and a DTSTART
// of the same value type as its DTEND. It returns the event count.
func Validate(body []byte) (int, error) {
	events, err := ParseFeed(body)
	if err != nil {
		return 0, fmt.Errorf("ics: invalid feed: %w", err)
	}
	return len(events), nil
}
