package cache

import (
	"context"
	"testing"
	"time"

	"Bt1QPlayer/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestStore(t *testing.T, ttl time.Duration) (*StreamURLStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStreamURLStore(client, ttl), mr
}

func TestStreamURLStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	url, err := store.Get(ctx, "7", model.SourceTidal)
	if err != nil || url != "" {
		t.Fatalf("Get on empty store = %q, %v; want empty, nil", url, err)
	}

	if err := store.Set(ctx, "7", model.SourceTidal, "https://cdn/7.flac"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	url, err = store.Get(ctx, "7", model.SourceTidal)
	if err != nil || url != "https://cdn/7.flac" {
		t.Fatalf("Get = %q, %v", url, err)
	}

	if err := store.Delete(ctx, "7", model.SourceTidal); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if url, _ := store.Get(ctx, "7", model.SourceTidal); url != "" {
		t.Errorf("expected miss after delete, got %q", url)
	}
}

func TestStreamURLStoreExpires(t *testing.T) {
	store, mr := newTestStore(t, 10*time.Minute)
	ctx := context.Background()

	if err := store.Set(ctx, "9", model.SourceQobuz, "https://cdn/9.flac"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	ttl, err := store.TTL(ctx, "9", model.SourceQobuz)
	if err != nil || ttl <= 0 || ttl > 10*time.Minute {
		t.Fatalf("TTL = %v, %v", ttl, err)
	}

	mr.FastForward(11 * time.Minute)
	if url, _ := store.Get(ctx, "9", model.SourceQobuz); url != "" {
		t.Errorf("expected expired key, got %q", url)
	}
}

func TestStreamURLStoreWithoutClient(t *testing.T) {
	store := NewStreamURLStore(nil, 0)
	if _, err := store.Get(context.Background(), "1", model.SourceTidal); err != ErrNotConnected {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}
