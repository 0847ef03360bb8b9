package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type counter struct {
	hits, misses atomic.Int64
}

func (c *counter) RecordCache(hit bool) {
	if hit {
		c.hits.Add(1)
		return
	}
	c.misses.Add(1)
}

func TestDoCachesPerOwner(t *testing.T) {
	c := New(Config{})
	rec := &counter{}
	c.Metrics = rec
	var loads atomic.Int64
	load := func(context.Context) (any, error) {
		loads.Add(1)
		return "value", nil
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.Do(ctx, "evaluation", "u1", "12", load); err != nil {
			t.Fatalf("do: %v", err)
		}
	}
	if _, err := c.Do(ctx, "evaluation", "u2", "12", load); err != nil {
		t.Fatalf("do: %v", err)
	}
	if loads.Load() != 2 {
		t.Fatalf("expected one load per owner, got %d", loads.Load())
	}
	if rec.hits.Load() != 2 || rec.misses.Load() != 2 {
		t.Fatalf("unexpected hit/miss %d/%d", rec.hits.Load(), rec.misses.Load())
	}
}

func TestInvalidateDropsKeyForAllOwners(t *testing.T) {
	c := New(Config{})
	ctx := context.Background()
	load := func(v string) func(context.Context) (any, error) {
		return func(context.Context) (any, error) { return v, nil }
	}
	_, _ = c.Do(ctx, "objectives", "u1", "12", load("a"))
	_, _ = c.Do(ctx, "objectives", "u2", "12", load("a"))
	_, _ = c.Do(ctx, "objectives", "u1", "13", load("b"))

	c.Invalidate("objectives", "12")
	if c.Len("objectives") != 1 {
		t.Fatalf("expected only key 13 to survive, got %d entries", c.Len("objectives"))
	}
	v, _ := c.Do(ctx, "objectives", "u1", "12", load("fresh"))
	if v != "fresh" {
		t.Fatalf("expected a reload after invalidation, got %v", v)
	}

	c.Invalidate("objectives", "")
	if c.Len("objectives") != 0 {
		t.Fatal("expected the namespace purged")
	}
}

func TestDoSharesConcurrentLoads(t *testing.T) {
	c := New(Config{})
	var loads atomic.Int64
	release := make(chan struct{})
	load := func(context.Context) (any, error) {
		loads.Add(1)
		<-release
		return 1, nil
	}
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Do(context.Background(), "evaluations", "u1", "", load)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if loads.Load() != 1 {
		t.Fatalf("expected a single upstream load, got %d", loads.Load())
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New(Config{})
	calls := 0
	load := func(context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("upstream down")
		}
		return "ok", nil
	}
	if _, err := c.Do(context.Background(), "activity", "u1", "1", load); err == nil {
		t.Fatal("expected the first load to fail")
	}
	if v, err := c.Do(context.Background(), "activity", "u1", "1", load); err != nil || v != "ok" {
		t.Fatalf("expected a retry to load, got %v %v", v, err)
	}
}

func TestNamespaceTTL(t *testing.T) {
	c := New(Config{TTLs: map[string]time.Duration{"activity": 20 * time.Millisecond}})
	calls := 0
	load := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}
	_, _ = c.Do(context.Background(), "activity", "u1", "1", load)
	time.Sleep(60 * time.Millisecond)
	_, _ = c.Do(context.Background(), "activity", "u1", "1", load)
	if calls != 2 {
		t.Fatalf("expected the entry to expire, got %d loads", calls)
	}
}
