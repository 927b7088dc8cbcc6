package cache

import (
	"testing"
	"time"
)

func TestLRU_GetSet(t *testing.T) {
	c := NewLRU[float64](4, time.Minute)

	if _, ok := c.Get("btc-eur"); ok {
		t.Error("empty cache should miss")
	}

	c.Set("btc-eur", 91000.5)
	got, ok := c.Get("btc-eur")
	if !ok || got != 91000.5 {
		t.Errorf("Get = %v, %v; want 91000.5, true", got, ok)
	}
}

func TestLRU_TTLExpiry(t *testing.T) {
	c := NewLRU[int](4, 10*time.Millisecond)
	c.Set("k", 1)

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry should miss")
	}
	if c.Size() != 0 {
		t.Errorf("size = %d, want 0 after expiry eviction on access", c.Size())
	}
}

func TestLRU_EvictsOldest(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry should survive")
	}
	if c.Size() != 2 {
		t.Errorf("size = %d, want 2", c.Size())
	}
}

func TestLRU_SetExistingUpdates(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("k", 1)
	c.Set("k", 2)

	if got, _ := c.Get("k"); got != 2 {
		t.Errorf("Get = %d, want 2", got)
	}
	if c.Size() != 1 {
		t.Errorf("size = %d, want 1", c.Size())
	}
}

func TestLRU_Delete(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("k", 1)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("deleted entry should miss")
	}
}
