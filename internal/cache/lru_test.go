package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute)
	c.now = clock.now

	c.Set("k", "v")
	clock.advance(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before ttl")
	}
	clock.advance(31 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("fixed ttl must not be extended by reads")
	}
}

func TestLRUCache_SlidingExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewSlidingLRUCache[string](10, time.Minute)
	c.now = clock.now

	c.Set("k", "v")
	for i := 0; i < 5; i++ {
		clock.advance(45 * time.Second)
		if _, ok := c.Get("k"); !ok {
			t.Fatalf("read %d: expected sliding ttl to keep entry alive", i)
		}
	}
	clock.advance(61 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected idle entry to expire")
	}
}

func TestManager_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute)
	c.now = clock.now
	c.Set("a", 1)
	c.Set("b", 2)
	clock.advance(2 * time.Minute)
	c.Set("c", 3)

	m := NewManager(nil)
	m.Register(c)
	if removed := m.Sweep(); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if c.Size() != 1 {
		t.Fatalf("expected 1 entry left, got %d", c.Size())
	}
}

func TestManager_StartCleanupRejectsBadSchedule(t *testing.T) {
	m := NewManager(nil)
	if err := m.StartCleanup("not a schedule"); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
	ok := NewManager(nil)
	if err := ok.StartCleanup("@every 1h"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok.Stop()
}
