package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"formbuilder/api/internal/cache"
	"formbuilder/api/internal/rbac"
	"formbuilder/api/internal/store"
	"github.com/alicebob/miniredis/v2"
)

type fakeStore struct {
	owners  []string
	deleted bool
	count   int
	counted int
	purged  int
	err     error
}

func (f *fakeStore) FindTemplateWithUsers(_ context.Context, id string) (*store.Template, []store.User, error) {
	if id != "tpl-1" {
		return nil, nil, nil
	}
	row := &store.Template{ID: id}
	if f.deleted {
		ttl := time.Now()
		row.TTL = &ttl
	}
	users := make([]store.User, 0, len(f.owners))
	for _, owner := range f.owners {
		users = append(users, store.User{ID: owner})
	}
	return row, users, nil
}

func (f *fakeStore) CountUnprocessedResponses(context.Context, string) (int, error) {
	f.counted++
	return f.count, f.err
}

func (f *fakeStore) DeleteResponses(context.Context, string) (int64, error) {
	f.purged++
	return int64(f.count), f.err
}

func owner() *rbac.Ability {
	return rbac.NewAbility("u1", "u1@example.gc.ca", []rbac.Privilege{rbac.PrivilegeBase})
}

func newCounts(t *testing.T) *cache.CountCache {
	t.Helper()
	s := miniredis.RunT(t)
	redisStore, err := cache.NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	t.Cleanup(func() { _ = redisStore.Close() })
	return cache.NewCountCache(redisStore, time.Minute, nil)
}

func TestCountUnprocessedUsesCacheUnlessBypassed(t *testing.T) {
	fs := &fakeStore{owners: []string{"u1"}, count: 2}
	svc := NewService(fs, newCounts(t), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		count, err := svc.CountUnprocessed(ctx, owner(), "tpl-1", false)
		if err != nil || count != 2 {
			t.Fatalf("expected 2, got %d err=%v", count, err)
		}
	}
	if fs.counted != 1 {
		t.Fatalf("expected one store read, got %d", fs.counted)
	}

	fs.count = 5
	count, err := svc.CountUnprocessed(ctx, owner(), "tpl-1", true)
	if err != nil || count != 5 {
		t.Fatalf("expected fresh count 5, got %d err=%v", count, err)
	}
	if fs.counted != 2 {
		t.Fatalf("bypass must read the store, got %d reads", fs.counted)
	}
}

func TestCountUnprocessedDeniedForNonOwner(t *testing.T) {
	fs := &fakeStore{owners: []string{"u2"}}
	svc := NewService(fs, nil, nil)

	_, err := svc.CountUnprocessed(context.Background(), owner(), "tpl-1", true)
	if !errors.Is(err, rbac.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if fs.counted != 0 {
		t.Fatal("denied request must not read responses")
	}
}

func TestCountUnprocessedMissingTemplate(t *testing.T) {
	svc := NewService(&fakeStore{}, nil, nil)
	if _, err := svc.CountUnprocessed(context.Background(), owner(), "missing", true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	deleted := &fakeStore{owners: []string{"u1"}, deleted: true}
	if _, err := NewService(deleted, nil, nil).CountUnprocessed(context.Background(), owner(), "tpl-1", true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for soft-deleted template, got %v", err)
	}
}

func TestPurgeDraftResponsesInvalidatesCount(t *testing.T) {
	fs := &fakeStore{owners: []string{"u1"}, count: 3}
	counts := newCounts(t)
	svc := NewService(fs, counts, nil)
	ctx := context.Background()

	if _, err := svc.CountUnprocessed(ctx, owner(), "tpl-1", false); err != nil {
		t.Fatalf("count: %v", err)
	}
	if err := svc.PurgeDraftResponses(ctx, owner(), "tpl-1"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if fs.purged != 1 {
		t.Fatalf("expected one purge, got %d", fs.purged)
	}
	if _, ok := counts.Unprocessed(ctx, "tpl-1"); ok {
		t.Fatal("expected cached count invalidated")
	}
}

func TestPurgePropagatesStoreFailure(t *testing.T) {
	fs := &fakeStore{owners: []string{"u1"}, err: errors.New("db down")}
	svc := NewService(fs, nil, nil)
	if err := svc.PurgeDraftResponses(context.Background(), owner(), "tpl-1"); err == nil {
		t.Fatal("expected error")
	}
}
