package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"notionics/internal/ics"
	appLog "notionics/internal/log"
	"notionics/internal/metrics"
	"notionics/internal/model"
	"notionics/internal/notion"
)

// Mode selects which records make it into a feed.
type Mode string

const (
	// ModeFull emits every mappable record in source order.
	ModeFull Mode = "full"
	// ModeWindowed emits at most WindowSize records: soonest upcoming
	// first, backfilled with the most recent past.
	ModeWindowed Mode = "windowed"
)

// DefaultWindowSize bounds windowed feeds when Assembler.WindowSize is unset.
const DefaultWindowSize = 50

// Skip reasons reported to metrics.
const (
	skipNoDate        = "no_date"
	skipMalformedDate = "malformed_date"
)

// Assembler builds a serialized calendar from the whole record source.
type Assembler struct {
	Source     notion.Source
	DatabaseID string
	PageSize   int

	Mapper *ics.Mapper
	Header ics.Header

	WindowSize int

	// Now is the classification clock for windowed feeds. Nil means
	// time.Now.
	Now     func() time.Time
	Metrics metrics.Recorder
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Assembler) recorder() metrics.Recorder {
	if a.Metrics == nil {
		return metrics.Nop{}
	}
	return a.Metrics
}

func (a *Assembler) mapper() *ics.Mapper {
	if a.Mapper == nil {
		return &ics.Mapper{}
	}
	return a.Mapper
}

// Assemble paginates the source, selects records according to mode and
// renders the calendar. Any source error aborts the whole assembly.
func (a *Assembler) Assemble(ctx context.Context, mode Mode) (string, error) {
	started := time.Now()
	body, n, err := a.assemble(ctx, mode)
	a.recorder().RecordAssembly(string(mode), time.Since(started), n, err)
	if err != nil {
		appLog.Error("feed assembly failed", err, "mode", mode)
		return "", err
	}
	appLog.Info("feed assembled", "mode", mode, "events", n, "bytes", len(body), "took", time.Since(started).String())
	return body, nil
}

func (a *Assembler) assemble(ctx context.Context, mode Mode) (string, int, error) {
	if mode != ModeFull && mode != ModeWindowed {
		return "", 0, fmt.Errorf("feed: unknown mode %q", mode)
	}

	records, err := notion.Collect(notion.Paginate(ctx, a.countingSource(), a.DatabaseID, a.PageSize))
	if err != nil {
		return "", 0, fmt.Errorf("feed: fetch records: %w", err)
	}

	if mode == ModeWindowed {
		records = a.selectWindow(records)
	}

	m := a.mapper()
	events := make([]model.CalendarEvent, 0, len(records))
	for _, rec := range records {
		ev, err := m.ToEvent(rec)
		if err != nil {
			a.skip(rec, err)
			continue
		}
		events = append(events, ev)
	}

	return ics.Render(a.Header, events), len(events), nil
}

type candidate struct {
	rec   model.Record
	start time.Time
}

// selectWindow classifies records against now, orders upcoming ascending
// and past descending, and keeps up to WindowSize of them with upcoming
// first.
func (a *Assembler) selectWindow(records []model.Record) []model.Record {
	size := a.WindowSize
	if size <= 0 {
		size = DefaultWindowSize
	}
	now := a.now().UTC()
	m := a.mapper()

	var upcoming, past []candidate
	for _, rec := range records {
		r, ok := m.Range(rec)
		if !ok {
			a.skip(rec, ics.ErrNoDate)
			continue
		}
		start, err := r.StartInstant()
		if err != nil {
			a.skip(rec, err)
			continue
		}
		c := candidate{rec: rec, start: start}
		if start.Before(now) {
			past = append(past, c)
		} else {
			upcoming = append(upcoming, c)
		}
	}

	slices.SortStableFunc(upcoming, func(x, y candidate) int { return x.start.Compare(y.start) })
	slices.SortStableFunc(past, func(x, y candidate) int { return y.start.Compare(x.start) })

	selected := make([]model.Record, 0, size)
	for _, c := range upcoming {
		if len(selected) == size {
			break
		}
		selected = append(selected, c.rec)
	}
	for _, c := range past {
		if len(selected) == size {
			break
		}
		selected = append(selected, c.rec)
	}
	return selected
}

func (a *Assembler) skip(rec model.Record, err error) {
	reason := skipMalformedDate
	if errors.Is(err, ics.ErrNoDate) {
		reason = skipNoDate
	}
	a.recorder().RecordSkip(reason)
	appLog.Debug("skip record", "page_id", rec.ID, "title", ics.Title(rec), "reason", reason, "err", err)
}

// countingSource reports each fetched page to metrics.
type countingSource struct {
	notion.Source
	rec metrics.Recorder
}

func (s countingSource) Query(ctx context.Context, req notion.QueryRequest) (notion.QueryResponse, error) {
	resp, err := s.Source.Query(ctx, req)
	if err == nil {
		s.rec.RecordSourcePage()
	}
	return resp, err
}

func (a *Assembler) countingSource() notion.Source {
	return countingSource{Source: a.Source, rec: a.recorder()}
}
