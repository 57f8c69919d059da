package cache

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string, int](2, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get() on empty cache should miss")
	}

	c.Set("a", 1)
	c.Set("a", 2)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) = %d, %v, want 2, true", v, ok)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[string, int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // b is now the oldest
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestLRUCache_TTL(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[string, string](10, time.Minute).WithClock(clock.Now)

	c.Set("k", "v")
	clock.Advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should still be valid")
	}
	clock.Advance(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}

	c.Set("x", "1")
	c.Set("y", "2")
	clock.Advance(2 * time.Minute)
	c.Set("z", "3")
	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_DeleteFunc(t *testing.T) {
	type key struct {
		owner string
		month string
	}
	c := NewLRUCache[key, int](10, time.Minute)
	c.Set(key{"o1", "2026-01"}, 1)
	c.Set(key{"o1", "2026-02"}, 2)
	c.Set(key{"o2", "2026-01"}, 3)

	n := c.DeleteFunc(func(k key) bool { return k.owner == "o1" })
	if n != 2 || c.Size() != 1 {
		t.Errorf("DeleteFunc() = %d, size %d", n, c.Size())
	}

	c.Delete(key{"o2", "2026-01"})
	if c.Size() != 0 {
		t.Errorf("Size() = %d after Delete", c.Size())
	}
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := NewLRUCache[string, int](50, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				k := strings.Repeat("k", j%60+1)
				c.Set(k, i)
				c.Get(k)
			}
		}(i)
	}
	wg.Wait()
	if c.Size() > 50 {
		t.Errorf("Size() = %d exceeds capacity", c.Size())
	}
}

func TestManager_CleanNow(t *testing.T) {
	clock := newClock()
	a := NewLRUCache[string, int](10, time.Second).WithClock(clock.Now)
	b := NewLRUCache[int, int](10, time.Second).WithClock(clock.Now)
	a.Set("x", 1)
	b.Set(1, 1)
	b.Set(2, 2)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)

	clock.Advance(2 * time.Second)
	if n := m.CleanNow(); n != 3 {
		t.Errorf("CleanNow() = %d, want 3", n)
	}

	m.StartCleanup(10 * time.Millisecond)
	m.StartCleanup(10 * time.Millisecond)
	m.Stop()
	m.Stop()
}
