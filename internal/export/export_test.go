package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"notionics/internal/feed"
	"notionics/internal/ics"
	"notionics/internal/model"
)

func validFeed() string {
	return ics.Render(ics.Header{ProductID: "P", Name: "N", TimeZone: "UTC"}, []model.CalendarEvent{
		{UID: "a-notion@ics", Stamp: "20250101T000000Z", Start: "20250102", End: "20250103", AllDay: true, Summary: "A", PageID: "a"},
	})
}

func buildReturning(body string, err error) feed.BuildFunc {
	return func(_ context.Context, mode feed.Mode) (string, error) {
		if mode != feed.ModeFull {
			return "", errors.New("export must use the full feed")
		}
		return body, err
	}
}

func TestExportWritesExactBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "calendar.ics")
	body := validFeed()

	res, err := (&Exporter{Build: buildReturning(body, nil), Path: path}).Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if res.Events != 1 || res.Bytes != len(body) || res.Path != path {
		t.Errorf("result = %+v", res)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != body {
		t.Errorf("file content differs from feed:\n%q", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestExportKeepsPreviousFileOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.ics")
	if err := os.WriteFile(path, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		build feed.BuildFunc
	}{
		{"source error", buildReturning("", errors.New("unauthorized"))},
		{"invalid calendar", buildReturning("BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := (&Exporter{Build: tt.build, Path: path}).Export(context.Background()); err == nil {
				t.Fatal("expected error")
			}
			got, _ := os.ReadFile(path)
			if string(got) != "previous" {
				t.Errorf("file overwritten: %q", got)
			}
		})
	}
}

func TestExportRequiresPath(t *testing.T) {
	if _, err := (&Exporter{Build: buildReturning(validFeed(), nil)}).Export(context.Background()); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	calls := 0
	e := &Exporter{Path: filepath.Join(t.TempDir(), "c.ics"), Build: func(context.Context, feed.Mode) (string, error) {
		calls++
		return validFeed(), nil
	}}
	if err := Schedule(context.Background(), e, "every now and then"); err == nil {
		t.Error("expected parse error")
	}
	if calls != 0 {
		t.Errorf("exported %d times with an invalid schedule", calls)
	}
}

func TestScheduleExportsThenStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.ics")
	e := &Exporter{Path: path, Build: buildReturning(validFeed(), nil)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Schedule(ctx, e, "*/15 * * * *"); err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("initial export missing: %v", err)
	}
}

func TestScheduleFirstRunFailure(t *testing.T) {
	e := &Exporter{Path: filepath.Join(t.TempDir(), "c.ics"), Build: buildReturning("", errors.New("down"))}
	if err := Schedule(context.Background(), e, "@hourly"); err == nil {
		t.Error("expected first-run error")
	}
}
