package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"notionics/internal/metrics"
	"notionics/internal/model"
)

type cacheRecorder struct {
	metrics.Nop
	fresh, stale int
}

func (r *cacheRecorder) RecordCache(_ string, fresh bool) {
	if fresh {
		r.fresh++
	} else {
		r.stale++
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// countingBuild returns a distinct body per call so rebuilds are visible.
type countingBuild struct {
	calls map[Mode]int
	err   error
}

func (b *countingBuild) build(_ context.Context, mode Mode) (string, error) {
	if b.calls == nil {
		b.calls = map[Mode]int{}
	}
	b.calls[mode]++
	if b.err != nil {
		return "", b.err
	}
	return fmt.Sprintf("%s-%d", mode, b.calls[mode]), nil
}

func TestCacheServesFreshEntry(t *testing.T) {
	clock := &fakeClock{t: testNow}
	b := &countingBuild{}
	c := NewCache(b.build, 10*time.Minute, WithClock(clock.Now))

	first, err := c.Get(context.Background(), ModeFull)
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(9*time.Minute + 59*time.Second)
	second, err := c.Get(context.Background(), ModeFull)
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("fresh lookup returned %q, want cached %q", second, first)
	}
	if b.calls[ModeFull] != 1 {
		t.Errorf("builds = %d, want 1", b.calls[ModeFull])
	}
}

func TestCacheRebuildsWhenStale(t *testing.T) {
	clock := &fakeClock{t: testNow}
	b := &countingBuild{}
	c := NewCache(b.build, 10*time.Minute, WithClock(clock.Now))

	_, _ = c.Get(context.Background(), ModeFull)
	clock.Advance(10 * time.Minute)
	got, err := c.Get(context.Background(), ModeFull)
	if err != nil {
		t.Fatal(err)
	}
	if got != "full-2" {
		t.Errorf("body = %q, want full-2", got)
	}

	// The rebuilt entry is fresh from its own build time.
	clock.Advance(5 * time.Minute)
	if got, _ := c.Get(context.Background(), ModeFull); got != "full-2" {
		t.Errorf("body = %q, want full-2", got)
	}
}

func TestCacheKeysByMode(t *testing.T) {
	b := &countingBuild{}
	c := NewCache(b.build, time.Minute)

	full, _ := c.Get(context.Background(), ModeFull)
	lite, _ := c.Get(context.Background(), ModeWindowed)
	if full != "full-1" || lite != "windowed-1" {
		t.Errorf("bodies = %q, %q", full, lite)
	}
	if b.calls[ModeFull] != 1 || b.calls[ModeWindowed] != 1 {
		t.Errorf("builds = %v", b.calls)
	}
}

func TestCacheFailureStaysStale(t *testing.T) {
	clock := &fakeClock{t: testNow}
	b := &countingBuild{}
	c := NewCache(b.build, time.Minute, WithClock(clock.Now))

	if _, err := c.Get(context.Background(), ModeFull); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)

	b.err = errors.New("source down")
	if _, err := c.Get(context.Background(), ModeFull); err == nil {
		t.Fatal("expected build error to propagate")
	}
	if _, err := c.Get(context.Background(), ModeFull); err == nil {
		t.Fatal("failed build must not mark the entry fresh")
	}

	b.err = nil
	got, err := c.Get(context.Background(), ModeFull)
	if err != nil {
		t.Fatal(err)
	}
	if got != "full-4" {
		t.Errorf("body = %q, want full-4", got)
	}
}

func TestCacheDefaultTTL(t *testing.T) {
	c := NewCache((&countingBuild{}).build, 0)
	if c.ttl != DefaultCacheTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultCacheTTL)
	}
}

func TestCacheOverAssembler(t *testing.T) {
	clock := &fakeClock{t: testNow}
	src := &sliceSource{records: []model.Record{record("a", "A", "2025-07-01")}}
	rec := &cacheRecorder{}
	a := newAssembler(src)
	c := NewCache(a.Assemble, 10*time.Minute, WithClock(clock.Now), WithMetrics(rec))

	first, err := c.Get(context.Background(), ModeFull)
	if err != nil {
		t.Fatal(err)
	}

	// Source changes are invisible until the entry goes stale.
	src.records = append(src.records, record("b", "B", "2025-07-02"))
	second, _ := c.Get(context.Background(), ModeFull)
	if first != second {
		t.Error("fresh cache hit is not byte-identical")
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1", src.calls)
	}

	clock.Advance(11 * time.Minute)
	third, _ := c.Get(context.Background(), ModeFull)
	if got := pageIDs(t, third); len(got) != 2 {
		t.Errorf("events after refresh = %v, want a,b", got)
	}

	if rec.fresh != 1 || rec.stale != 2 {
		t.Errorf("lookups fresh=%d stale=%d, want 1 and 2", rec.fresh, rec.stale)
	}
}
