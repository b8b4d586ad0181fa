package model

import (
	"reflect"
	"testing"
)

func TestPropertiesGetAndNames(t *testing.T) {
	props := Properties{
		{Name: "Name", Value: PropertyValue{Kind: KindTitle, Text: []TextRun{{PlainText: "Exam"}}}},
		{Name: "Due", Value: PropertyValue{Kind: KindDate, Date: &DateValue{Start: "2025-10-09"}}},
		{Name: "Done", Value: PropertyValue{Kind: KindOther, Type: "checkbox"}},
	}

	v, ok := props.Get("Due")
	if !ok || v.Kind != KindDate || v.Date.Start != "2025-10-09" {
		t.Fatalf("Get(Due) = %+v, %v", v, ok)
	}
	if _, ok := props.Get("Missing"); ok {
		t.Error("Get(Missing) reported a hit")
	}

	want := []string{"Name", "Due", "Done"}
	if got := props.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}
