package cache

import (
	"testing"
	"time"

	"Bt1QPlayer/model"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func TestURLCacheHitAndMiss(t *testing.T) {
	c := NewURLCache(time.Hour)

	if _, ok := c.Get("1", model.SourceTidal); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("1", model.SourceTidal, "https://cdn/1.flac")
	url, ok := c.Get("1", model.SourceTidal)
	if !ok || url != "https://cdn/1.flac" {
		t.Fatalf("Get = %q, %v; want hit", url, ok)
	}

	// 同一 ID 不同音源互不干扰
	if _, ok := c.Get("1", model.SourceQobuz); ok {
		t.Error("expected miss for a different source")
	}
}

func TestURLCacheExpiryEvicts(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewURLCache(time.Hour)
	c.now = clock.Now

	c.Put("42", model.SourceNetease, "https://cdn/42.mp3")

	clock.t = clock.t.Add(59 * time.Minute)
	if _, ok := c.Get("42", model.SourceNetease); !ok {
		t.Fatal("expected hit inside TTL")
	}

	clock.t = clock.t.Add(time.Minute)
	if _, ok := c.Get("42", model.SourceNetease); ok {
		t.Fatal("expected miss once TTL elapsed")
	}
	if n := c.Len(); n != 0 {
		t.Errorf("expected expired entry to be evicted, Len = %d", n)
	}
}

func TestURLCacheDefaultTTL(t *testing.T) {
	c := NewURLCache(0)
	if c.ttl != DefaultURLTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultURLTTL)
	}
}
