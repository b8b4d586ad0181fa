package ics

import (
	"strings"

	"notionics/internal/model"
)

// CRLF terminates every content line.
const CRLF = "\r\n"

// VendorPageIDProperty carries the source record id on each VEVENT.
const VendorPageIDProperty = "X-NOTION-PAGE-ID"

// Header is the calendar-level metadata written before the events.
type Header struct {
	ProductID string
	Name      string
	TimeZone  string
}

type lineWriter struct {
	b strings.Builder
}

func (w *lineWriter) line(parts ...string) {
	for _, p := range parts {
		w.b.WriteString(p)
	}
	w.b.WriteString(CRLF)
}

// Render serializes a complete VCALENDAR document.
func Render(h Header, events []model.CalendarEvent) string {
	var w lineWriter
	w.line("BEGIN:VCALENDAR")
	w.line("VERSION:2.0")
	w.line("PRODID:-//", h.ProductID, "//EN")
	w.line("X-WR-CALNAME:", Escape(h.Name))
	w.line("X-WR-TIMEZONE:", Escape(h.TimeZone))
	w.line("CALSCALE:GREGORIAN")
	w.line("METHOD:PUBLISH")
	for _, ev := range events {
		writeEvent(&w, ev)
	}
	w.line("END:VCALENDAR")
	return w.b.String()
}

// RenderEvent serializes a single VEVENT block, CRLF-terminated.
func RenderEvent(ev model.CalendarEvent) string {
	var w lineWriter
	writeEvent(&w, ev)
	return w.b.String()
}

func writeEvent(w *lineWriter, ev model.CalendarEvent) {
	w.line("BEGIN:VEVENT")
	w.line("UID:", ev.UID)
	w.line("DTSTAMP:", ev.Stamp)
	if ev.AllDay {
		w.line("DTSTART;VALUE=DATE:", ev.Start)
		w.line("DTEND;VALUE=DATE:", ev.End)
	} else {
		w.line("DTSTART:", ev.Start)
		w.line("DTEND:", ev.End)
	}
	w.line("SUMMARY:", Escape(ev.Summary))
	if ev.Description != "" {
		w.line("DESCRIPTION:", Escape(ev.Description))
	}
	if ev.Location != "" {
		w.line("LOCATION:", Escape(ev.Location))
	}
	if ev.URL != "" {
		w.line("URL:", Escape(ev.URL))
	}
	w.line(VendorPageIDProperty, ":", ev.PageID)
	w.line("END:VEVENT")
}
