package cache

import (
	"context"
	"testing"
	"time"

	"clipbin/pkg/domain"
)

func pasteWithExpiry(id string, ttl time.Duration) *domain.Paste {
	exp := time.Now().Add(ttl)
	return &domain.Paste{
		ID:        id,
		Content:   "cached content",
		Keeping:   "1day",
		CreatedAt: time.Now(),
		ExpiresAt: &exp,
	}
}

func TestLRUSetGet(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	p := pasteWithExpiry("cacheid1", time.Hour)
	l.Set(ctx, p, time.Hour)
	got := l.Get(ctx, "cacheid1")
	if got == nil {
		t.Fatal("cached paste not returned")
	}
	if got.Content != p.Content {
		t.Errorf("content = %q, want %q", got.Content, p.Content)
	}
	if l.Get(ctx, "missing1") != nil {
		t.Error("unknown id returned a paste")
	}
}

func TestLRUTTLExpiry(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	p := pasteWithExpiry("shortttl", time.Hour)
	l.Set(ctx, p, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if l.Get(ctx, "shortttl") != nil {
		t.Error("entry served past its TTL")
	}
}

func TestLRURefusesBurnPastes(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	p := &domain.Paste{
		ID:        "burncach",
		Content:   "never cache",
		Keeping:   "burn",
		Burn:      true,
		CreatedAt: time.Now(),
	}
	l.Set(ctx, p, time.Hour)
	if l.Get(ctx, "burncach") != nil {
		t.Error("burn paste was cached")
	}
}

func TestLRUDelete(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	l.Set(ctx, pasteWithExpiry("deleteme", time.Hour), time.Hour)
	l.Delete("deleteme")
	if l.Get(ctx, "deleteme") != nil {
		t.Error("deleted entry still served")
	}
}

func TestLRUEviction(t *testing.T) {
	l, err := NewLRU(2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	l.Set(ctx, pasteWithExpiry("evict001", time.Hour), time.Hour)
	l.Set(ctx, pasteWithExpiry("evict002", time.Hour), time.Hour)
	l.Set(ctx, pasteWithExpiry("evict003", time.Hour), time.Hour)
	if l.Get(ctx, "evict001") != nil {
		t.Error("oldest entry survived past capacity")
	}
	if l.Get(ctx, "evict003") == nil {
		t.Error("newest entry evicted")
	}
}

func TestLRUSizeBounds(t *testing.T) {
	if _, err := NewLRU(0); err == nil {
		t.Error("zero size accepted")
	}
	if _, err := NewLRU(-5); err == nil {
		t.Error("negative size accepted")
	}
	if _, err := NewLRU(200000); err == nil {
		t.Error("oversized cache accepted")
	}
}
