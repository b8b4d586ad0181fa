// Package export writes the full feed to a static file, once or on a cron
// schedule.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"notionics/internal/feed"
	"notionics/internal/ics"
	appLog "notionics/internal/log"
)

// Result describes one completed export.
type Result struct {
	Path   string
	Events int
	Bytes  int
	Took   time.Duration
}

// Exporter assembles the full feed and publishes it at Path.
type Exporter struct {
	Build feed.BuildFunc
	Path  string
}

// Export builds the full feed, checks it parses as iCalendar and replaces
// Path atomically. On any error the previous file is left untouched.
func (e *Exporter) Export(ctx context.Context) (Result, error) {
	if e.Path == "" {
		return Result{}, errors.New("export: path is empty")
	}
	started := time.Now()

	body, err := e.Build(ctx, feed.ModeFull)
	if err != nil {
		return Result{}, fmt.Errorf("export: %w", err)
	}
	n, err := ics.Validate([]byte(body))
	if err != nil {
		return Result{}, fmt.Errorf("export: %w", err)
	}
	if err := writeFileAtomic(e.Path, []byte(body), 0o644); err != nil {
		return Result{}, fmt.Errorf("export: write %s: %w", e.Path, err)
	}

	res := Result{Path: e.Path, Events: n, Bytes: len(body), Took: time.Since(started)}
	appLog.Info("feed exported", "path", res.Path, "events", res.Events, "bytes", res.Bytes, "took", res.Took.String())
	return res, nil
}

// writeFileAtomic writes data to a temp file next to path, syncs it and
// renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".notionics-export-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Schedule exports immediately, then again on every tick of the cron
// expression spec until ctx is cancelled. A failed run is logged and the
// schedule continues; only an invalid spec or a failed first run is
// returned.
func Schedule(ctx context.Context, e *Exporter, spec string) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("export: schedule %q: %w", spec, err)
	}

	if _, err := e.Export(ctx); err != nil {
		return err
	}

	c := cron.New()
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := e.Export(ctx); err != nil {
			appLog.Error("scheduled export failed", err, "path", e.Path)
		}
	}))
	c.Start()
	appLog.Info("export scheduled", "schedule", spec, "next", sched.Next(time.Now()).Format(time.RFC3339))

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("export scheduler stopped")
	return nil
}
