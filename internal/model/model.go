package model

// PropertyKind is the type tag of a record property. Only the kinds the
// calendar mapping cares about are distinguished; everything else is
// KindOther.
type PropertyKind string

const (
	KindTitle    PropertyKind = "title"
	KindRichText PropertyKind = "rich_text"
	KindDate     PropertyKind = "date"
	KindOther    PropertyKind = "other"
)

// TextRun is one segment of a title or rich text value.
type TextRun struct {
	PlainText string
}

// DateValue is the raw payload of a date property. Start and End are kept
// exactly as the source sent them (ISO-8601); End is "" when absent.
type DateValue struct {
	Start string
	End   string
	// TimeZone is the IANA zone the source attaches to offset-less
	// date-times, if any.
	TimeZone string
}

// PropertyValue is a tagged union over the supported property kinds.
// Text is populated for KindTitle/KindRichText, Date for KindDate (nil when
// the source sent an empty date).
type PropertyValue struct {
	Kind PropertyKind
	// Type is the source's own type tag, kept for diagnostics when Kind is
	// KindOther (e.g. "checkbox", "select").
	Type string
	Text []TextRun
	Date *DateValue
}

// Property is a named property value.
type Property struct {
	Name  string
	Value PropertyValue
}

// Properties is an ordered property mapping. Order follows the source
// payload.
type Properties []Property

// Get returns the property with the given name.
func (ps Properties) Get(name string) (PropertyValue, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p.Value, true
		}
	}
	return PropertyValue{}, false
}

// Names returns the property names in order.
func (ps Properties) Names() []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

// Record is one item from the record source. Immutable once fetched.
type Record struct {
	ID         string
	URL        string
	Properties Properties
}

// CalendarEvent is a mapped record ready for serialization. Text fields are
// unescaped; escaping happens when the event is rendered.
//
// AllDay events carry DATE tokens (YYYYMMDD) in Start/End, timed events
// carry UTC DATE-TIME tokens (YYYYMMDDTHHMMSSZ).
type CalendarEvent struct {
	UID   string
	Stamp string

	Start  string
	End    string
	AllDay bool

	Summary     string
	Description string
	Location    string
	URL         string

	// PageID is the source record id, emitted as a vendor extension.
	PageID string
}
