package notion

import (
	"bytes"
	"encoding/json"
	"fmt"

	"notionics/internal/model"
)

type rawPage struct {
	ID         string        `json:"id"`
	URL        string        `json:"url"`
	Properties rawProperties `json:"properties"`
}

func (p rawPage) record() model.Record {
	return model.Record{
		ID:         p.ID,
		URL:        p.URL,
		Properties: model.Properties(p.Properties),
	}
}

type rawText struct {
	PlainText string `json:"plain_text"`
}

type rawDate struct {
	Start    string  `json:"start"`
	End      *string `json:"end"`
	TimeZone *string `json:"time_zone"`
}

type rawProperty struct {
	Type     string    `json:"type"`
	Title    []rawText `json:"title"`
	RichText []rawText `json:"rich_text"`
	Date     *rawDate  `json:"date"`
}

func (rp rawProperty) value() model.PropertyValue {
	v := model.PropertyValue{Type: rp.Type}
	switch rp.Type {
	case "title":
		v.Kind = model.KindTitle
		v.Text = runs(rp.Title)
	case "rich_text":
		v.Kind = model.KindRichText
		v.Text = runs(rp.RichText)
	case "date":
		v.Kind = model.KindDate
		if rp.Date != nil {
			d := &model.DateValue{Start: rp.Date.Start}
			if rp.Date.End != nil {
				d.End = *rp.Date.End
			}
			if rp.Date.TimeZone != nil {
				d.TimeZone = *rp.Date.TimeZone
			}
			v.Date = d
		}
	default:
		v.Kind = model.KindOther
	}
	return v
}

func runs(in []rawText) []model.TextRun {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.TextRun, len(in))
	for i, t := range in {
		out[i] = model.TextRun{PlainText: t.PlainText}
	}
	return out
}

// rawProperties decodes the "properties" object keeping key order, which
// the date fallback depends on.
type rawProperties model.Properties

func (ps *rawProperties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*ps = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("notion: properties: expected object, got %v", tok)
	}

	out := rawProperties{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("notion: properties: unexpected key %v", keyTok)
		}
		var rp rawProperty
		if err := dec.Decode(&rp); err != nil {
			return fmt.Errorf("notion: property %q: %w", name, err)
		}
		out = append(out, model.Property{Name: name, Value: rp.value()})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*ps = out
	return nil
}
