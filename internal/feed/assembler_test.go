package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"notionics/internal/ics"
	"notionics/internal/metrics"
	"notionics/internal/model"
	"notionics/internal/notion"
)

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// sliceSource serves records in pages of req.PageSize.
type sliceSource struct {
	records []model.Record
	err     error
	calls   int
}

func (s *sliceSource) Query(_ context.Context, req notion.QueryRequest) (notion.QueryResponse, error) {
	s.calls++
	if s.err != nil {
		return notion.QueryResponse{}, s.err
	}
	start := 0
	if req.Cursor != "" {
		fmt.Sscanf(req.Cursor, "%d", &start)
	}
	end := min(start+req.PageSize, len(s.records))
	resp := notion.QueryResponse{Results: s.records[start:end]}
	if end < len(s.records) {
		resp.HasMore = true
		resp.NextCursor = fmt.Sprint(end)
	}
	return resp, nil
}

func record(id, title, start string) model.Record {
	props := model.Properties{
		{Name: "Name", Value: model.PropertyValue{Kind: model.KindTitle, Text: []model.TextRun{{PlainText: title}}}},
	}
	if start != "" {
		props = append(props, model.Property{
			Name:  "Unified Date",
			Value: model.PropertyValue{Kind: model.KindDate, Date: &model.DateValue{Start: start}},
		})
	}
	return model.Record{ID: id, Properties: props}
}

func newAssembler(src notion.Source) *Assembler {
	clock := func() time.Time { return testNow }
	return &Assembler{
		Source:     src,
		DatabaseID: "db",
		PageSize:   7,
		Mapper:     &ics.Mapper{Now: clock},
		Header:     ics.Header{ProductID: "Test", Name: "Feed", TimeZone: "UTC"},
		Now:        clock,
	}
}

func pageIDs(t *testing.T, body string) []string {
	t.Helper()
	events, err := ics.ParseFeed([]byte(body))
	if err != nil {
		t.Fatalf("ParseFeed() error: %v\n%s", err, body)
	}
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.PageID
	}
	return ids
}

func TestAssembleFullKeepsSourceOrder(t *testing.T) {
	src := &sliceSource{records: []model.Record{
		record("c", "Third", "2025-09-01"),
		record("nodate", "No date", ""),
		record("a", "First", "2020-01-01"),
		record("bad", "Bad", "2025-13-40T25:00"),
		record("b", "Second", "2025-06-01T10:00:00.000Z"),
	}}

	body, err := newAssembler(src).Assemble(context.Background(), ModeFull)
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}

	got := strings.Join(pageIDs(t, body), ",")
	if got != "c,a,b" {
		t.Errorf("events = %s, want c,a,b", got)
	}
	if !strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n") || !strings.HasSuffix(body, "END:VCALENDAR\r\n") {
		t.Errorf("missing calendar boilerplate:\n%s", body)
	}
	if strings.Contains(body, "nodate") || strings.Contains(body, "X-NOTION-PAGE-ID:bad") {
		t.Errorf("skipped record leaked into feed:\n%s", body)
	}
}

func TestAssembleWindowedSelection(t *testing.T) {
	var records []model.Record
	// 30 upcoming and 40 past records, interleaved and out of order.
	for i := range 40 {
		if i < 30 {
			d := (i*7)%30 + 1
			records = append(records, record(fmt.Sprintf("up%02d", d), "up", testNow.AddDate(0, 0, d).Format("2006-01-02")))
		}
		d := (i*11)%40 + 1
		records = append(records, record(fmt.Sprintf("past%02d", d), "past", testNow.AddDate(0, 0, -d).Format("2006-01-02")))
	}

	body, err := newAssembler(&sliceSource{records: records}).Assemble(context.Background(), ModeWindowed)
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}

	ids := pageIDs(t, body)
	if len(ids) != 50 {
		t.Fatalf("events = %d, want 50", len(ids))
	}
	for i := range 30 {
		if want := fmt.Sprintf("up%02d", i+1); ids[i] != want {
			t.Errorf("event %d = %s, want %s", i, ids[i], want)
		}
	}
	for i := range 20 {
		if want := fmt.Sprintf("past%02d", i+1); ids[30+i] != want {
			t.Errorf("event %d = %s, want %s", 30+i, ids[30+i], want)
		}
	}
}

func TestAssembleWindowedCapsUpcoming(t *testing.T) {
	var records []model.Record
	for d := 60; d >= 1; d-- {
		records = append(records, record(fmt.Sprintf("up%02d", d), "up", testNow.AddDate(0, 0, d).Format("2006-01-02")))
	}
	records = append(records, record("past01", "past", testNow.AddDate(0, 0, -1).Format("2006-01-02")))

	a := newAssembler(&sliceSource{records: records})
	a.WindowSize = 5
	body, err := a.Assemble(context.Background(), ModeWindowed)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(pageIDs(t, body), ","); got != "up01,up02,up03,up04,up05" {
		t.Errorf("events = %s", got)
	}
}

func TestAssembleWindowedBoundaryAndTimedEvents(t *testing.T) {
	src := &sliceSource{records: []model.Record{
		record("justpast", "x", "2025-05-31T23:59:59.000Z"),
		record("today", "x", "2025-06-01"),
		record("nodate", "x", ""),
		record("later", "x", "2025-06-01T03:00:00.000+03:00"),
		record("soon", "x", "2025-06-01T00:30:00.000Z"),
	}}

	body, err := newAssembler(src).Assemble(context.Background(), ModeWindowed)
	if err != nil {
		t.Fatal(err)
	}
	// "later" is 00:00Z, equal to now, and sorts with "today" in source order.
	if got := strings.Join(pageIDs(t, body), ","); got != "today,later,soon,justpast" {
		t.Errorf("events = %s, want today,later,soon,justpast", got)
	}
}

func TestAssembleSourceFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := newAssembler(&sliceSource{err: fmt.Errorf("boom: %w", notion.ErrUnauthorized)})
	a.Metrics = metrics.NewCollector(reg)

	body, err := a.Assemble(context.Background(), ModeFull)
	if !errors.Is(err, notion.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	if body != "" {
		t.Errorf("partial body returned: %q", body)
	}
}

func TestAssembleUnknownMode(t *testing.T) {
	src := &sliceSource{}
	if _, err := newAssembler(src).Assemble(context.Background(), Mode("weekly")); err == nil {
		t.Error("expected error for unknown mode")
	}
	if src.calls != 0 {
		t.Errorf("source queried %d times for an invalid mode", src.calls)
	}
}

func TestAssembleEmptySource(t *testing.T) {
	body, err := newAssembler(&sliceSource{}).Assemble(context.Background(), ModeWindowed)
	if err != nil {
		t.Fatal(err)
	}
	if ids := pageIDs(t, body); len(ids) != 0 {
		t.Errorf("events = %v, want none", ids)
	}
}

func TestAssembleRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	src := &sliceSource{records: []model.Record{
		record("a", "A", "2025-07-01"),
		record("b", "B", ""),
		record("c", "C", "garbageT"),
	}}
	a := newAssembler(src)
	a.PageSize = 2
	a.Metrics = metrics.NewCollector(reg)

	if _, err := a.Assemble(context.Background(), ModeFull); err != nil {
		t.Fatal(err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "|" + lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				got[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				got[key] = m.GetGauge().GetValue()
			}
		}
	}

	want := map[string]float64{
		"notionics_source_pages_total":                   2,
		"notionics_records_skipped_total|no_date":        1,
		"notionics_records_skipped_total|malformed_date": 1,
		"notionics_assemblies_total|full|success":        1,
		"notionics_feed_events|full":                     1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}
