package cache

import "testing"

func TestGetPutRoundTrip(t *testing.T) {
	c := New[int](4)
	c.Put("a", 1)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("got %v, %v", v, ok)
	}
}

func TestGetMissingIsNotOk(t *testing.T) {
	c := New[int](4)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected a miss")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts "a", the LRU entry
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected \"a\" to have been evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("expected \"b\" to remain cached")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("expected \"c\" to remain cached")
	}
}

func TestGetPromotesToMostRecentlyUsed(t *testing.T) {
	c := New[int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")      // promote "a"; "b" becomes LRU
	c.Put("c", 3)   // evicts "b"
	if _, ok := c.Get("b"); ok {
		t.Fatal("expected \"b\" to have been evicted after \"a\" was promoted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected \"a\" to survive eviction")
	}
}

func TestZeroSizeFallsBackToDefault(t *testing.T) {
	c := New[int](0)
	if c.lru == nil {
		t.Fatal("expected a usable cache even with size <= 0")
	}
}

func TestPurgeEmptiesCache(t *testing.T) {
	c := New[int](4)
	c.Put("a", 1)
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after purge, got len %d", c.Len())
	}
}

func TestKeysOrder(t *testing.T) {
	c := New[int](4)
	c.Put("a", 1)
	c.Put("b", 2)
	keys := c.Keys()
	if len(keys) != 2 {
		t.Fatalf("got %v", keys)
	}
	if keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("got %v, want [a b] (least- to most-recently-used)", keys)
	}
}
