package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"notionics/internal/model"
)

const (
	untitled  = "Untitled"
	uidSuffix = "-notion@ics"
)

// ErrNoDate is returned for records without a usable start date. Such
// records cannot become calendar events and are skipped.
var ErrNoDate = errors.New("no date")

// Mapper turns records into calendar events.
type Mapper struct {
	// DateProperties is the name priority for the event date. Nil means
	// DefaultDateProperties.
	DateProperties []string
	// DescriptionProperty and LocationProperty name the optional free-text
	// properties. Empty means "Description" and "Location".
	DescriptionProperty string
	LocationProperty    string

	// Now supplies the DTSTAMP instant. Nil means time.Now.
	Now func() time.Time
}

func (m *Mapper) dateProperties() []string {
	if m.DateProperties == nil {
		return DefaultDateProperties
	}
	return m.DateProperties
}

func (m *Mapper) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Range returns the date range of the record's event date, using the same
// property selection as ToEvent.
func (m *Mapper) Range(rec model.Record) (DateRange, bool) {
	v, ok := FindDateProperty(rec.Properties, m.dateProperties())
	if !ok {
		return DateRange{}, false
	}
	return ParseRange(v)
}

// Title returns the trimmed record title, or "Untitled".
func Title(rec model.Record) string {
	v, _ := FindTitle(rec.Properties)
	if title := strings.TrimSpace(PlainText(v)); title != "" {
		return title
	}
	return untitled
}

// UID derives the stable event UID from a record id.
func UID(pageID string) string {
	return pageID + uidSuffix
}

// ToEvent maps a record to a calendar event. It returns ErrNoDate when the
// record has no start date and ErrMalformedDate when the date cannot be
// converted.
func (m *Mapper) ToEvent(rec model.Record) (model.CalendarEvent, error) {
	r, ok := m.Range(rec)
	if !ok {
		return model.CalendarEvent{}, ErrNoDate
	}

	start, end, err := r.Tokens()
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}

	descName := m.DescriptionProperty
	if descName == "" {
		descName = "Description"
	}
	locName := m.LocationProperty
	if locName == "" {
		locName = "Location"
	}
	desc, _ := rec.Properties.Get(descName)
	loc, _ := rec.Properties.Get(locName)

	return model.CalendarEvent{
		UID:         UID(rec.ID),
		Stamp:       m.now().UTC().Format(DateTimeLayout),
		Start:       start,
		End:         end,
		AllDay:      !r.IsDateTime,
		Summary:     Title(rec),
		Description: PlainText(desc),
		Location:    PlainText(loc),
		URL:         rec.URL,
		PageID:      rec.ID,
	}, nil
}
