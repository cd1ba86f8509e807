package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"formbuilder/api/internal/forms"
	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func fill(ctx context.Context, c *FormCache, record forms.Record) {
	c.Fill(ctx, record, c.Generation(ctx, record.ID))
}

func TestOpenWithoutURLIsDisabled(t *testing.T) {
	store, err := Open("")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if store.Available() {
		t.Fatal("expected disabled store")
	}
	if _, ok, err := store.Get(context.Background(), "form:x"); ok || err != nil {
		t.Fatalf("disabled store must miss, got ok=%v err=%v", ok, err)
	}
}

func TestOpenRejectsBadURL(t *testing.T) {
	if _, err := Open("not-a-url"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFormCacheRoundTrip(t *testing.T) {
	store, s := setupTestRedis(t)
	c := NewFormCache(store, time.Hour, nil)
	ctx := context.Background()

	if _, ok := c.Check(ctx, "tpl-1"); ok {
		t.Fatal("expected miss on empty cache")
	}

	fill(ctx, c, forms.Record{ID: "tpl-1", Name: "Intake", Form: json.RawMessage(`{"title":"T"}`), SecurityAttribute: forms.ProtectedA})
	if !s.Exists("form:tpl-1") {
		t.Fatal("expected key form:tpl-1")
	}
	if ttl := s.TTL("form:tpl-1"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	got, ok := c.Check(ctx, "tpl-1")
	if !ok || got.Name != "Intake" || got.SecurityAttribute != forms.ProtectedA {
		t.Fatalf("unexpected cached record %+v ok=%v", got, ok)
	}

	c.Invalidate(ctx, "tpl-1")
	if _, ok := c.Check(ctx, "tpl-1"); ok {
		t.Fatal("expected miss after invalidate")
	}
}

func TestFormCacheFillSkipsAfterInvalidate(t *testing.T) {
	store, s := setupTestRedis(t)
	c := NewFormCache(store, time.Hour, nil)
	ctx := context.Background()

	generation := c.Generation(ctx, "tpl-1")
	if generation != 0 {
		t.Fatalf("expected generation 0, got %d", generation)
	}

	c.Invalidate(ctx, "tpl-1")
	c.Fill(ctx, forms.Record{ID: "tpl-1", Name: "stale"}, generation)
	if s.Exists("form:tpl-1") {
		t.Fatal("fill taken before an invalidation must not be stored")
	}
	if ttl := s.TTL("form-gen:tpl-1"); ttl != time.Hour {
		t.Fatalf("expected generation ttl 1h, got %v", ttl)
	}

	c.Fill(ctx, forms.Record{ID: "tpl-1", Name: "fresh"}, c.Generation(ctx, "tpl-1"))
	got, ok := c.Check(ctx, "tpl-1")
	if !ok || got.Name != "fresh" {
		t.Fatalf("expected fresh record cached, got %+v ok=%v", got, ok)
	}
}

func TestFormCacheGenerationOutlivesShortTTL(t *testing.T) {
	store, s := setupTestRedis(t)
	c := NewFormCache(store, time.Second, nil)

	c.Invalidate(context.Background(), "tpl-1")
	if ttl := s.TTL("form-gen:tpl-1"); ttl != time.Minute {
		t.Fatalf("expected generation ttl 1m, got %v", ttl)
	}
}

func TestFormCacheExpiry(t *testing.T) {
	store, s := setupTestRedis(t)
	c := NewFormCache(store, time.Minute, nil)
	ctx := context.Background()

	fill(ctx, c, forms.Record{ID: "tpl-1"})
	s.FastForward(2 * time.Minute)

	if _, ok := c.Check(ctx, "tpl-1"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestFormCacheDropsCorruptEntry(t *testing.T) {
	store, s := setupTestRedis(t)
	c := NewFormCache(store, time.Hour, nil)

	if err := s.Set("form:tpl-1", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok := c.Check(context.Background(), "tpl-1"); ok {
		t.Fatal("expected corrupt entry to miss")
	}
	if s.Exists("form:tpl-1") {
		t.Fatal("expected corrupt entry removed")
	}
}

func TestFormCacheReportsMissWhenRedisDown(t *testing.T) {
	store, s := setupTestRedis(t)
	c := NewFormCache(store, time.Hour, nil)
	ctx := context.Background()

	fill(ctx, c, forms.Record{ID: "tpl-1"})
	s.Close()

	if _, ok := c.Check(ctx, "tpl-1"); ok {
		t.Fatal("expected miss when redis is unreachable")
	}
	c.Invalidate(ctx, "tpl-1")
}

func TestDisabledFormCacheIsNoop(t *testing.T) {
	c := NewFormCache(nil, time.Hour, nil)
	ctx := context.Background()

	if c.Available() {
		t.Fatal("expected unavailable cache")
	}
	fill(ctx, c, forms.Record{ID: "tpl-1"})
	if _, ok := c.Check(ctx, "tpl-1"); ok {
		t.Fatal("disabled cache must never hit")
	}
}

func TestCountCache(t *testing.T) {
	store, _ := setupTestRedis(t)
	c := NewCountCache(store, time.Minute, nil)
	ctx := context.Background()

	if _, ok := c.Unprocessed(ctx, "tpl-1"); ok {
		t.Fatal("expected miss")
	}
	c.SetUnprocessed(ctx, "tpl-1", 3)
	if n, ok := c.Unprocessed(ctx, "tpl-1"); !ok || n != 3 {
		t.Fatalf("expected 3, got %d ok=%v", n, ok)
	}
	c.InvalidateUnprocessed(ctx, "tpl-1")
	if _, ok := c.Unprocessed(ctx, "tpl-1"); ok {
		t.Fatal("expected miss after invalidate")
	}
}
