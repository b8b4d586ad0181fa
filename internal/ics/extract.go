package ics

import (
	"strings"

	"notionics/internal/model"
)

// DefaultDateProperties is the name priority used to pick the event date
// when a record has more than one date property.
var DefaultDateProperties = []string{"Unified Date", "Next Repetition", "Repetition Date"}

// FindTitle returns the first title-typed property. Records are expected to
// have exactly one.
func FindTitle(props model.Properties) (model.PropertyValue, bool) {
	for _, p := range props {
		if p.Value.Kind == model.KindTitle {
			return p.Value, true
		}
	}
	return model.PropertyValue{}, false
}

// FindDateProperty checks the preferred names in order and returns the first
// one that is date-typed. Otherwise it falls back to the first date-typed
// property in record order.
func FindDateProperty(props model.Properties, preferred []string) (model.PropertyValue, bool) {
	for _, name := range preferred {
		if v, ok := props.Get(name); ok && v.Kind == model.KindDate {
			return v, true
		}
	}
	for _, p := range props {
		if p.Value.Kind == model.KindDate {
			return p.Value, true
		}
	}
	return model.PropertyValue{}, false
}

// PlainText concatenates the text runs of a title or rich text value. Any
// other kind yields "".
func PlainText(v model.PropertyValue) string {
	if v.Kind != model.KindTitle && v.Kind != model.KindRichText {
		return ""
	}
	var b strings.Builder
	for _, run := range v.Text {
		b.WriteString(run.PlainText)
	}
	return b.String()
}
