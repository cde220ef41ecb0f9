package zpt

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func doc(name string) *PreparedDocument {
	return &PreparedDocument{Name: name}
}

func TestDocumentCache_Basic(t *testing.T) {
	cache := NewDocumentCacheWithConfig(CacheConfig{MaxSize: 10})

	if _, ok := cache.Get("a"); ok {
		t.Fatal("Get() on an empty cache found something")
	}
	a := doc("a")
	cache.Set("a", a)
	got, ok := cache.Get("a")
	if !ok || got != a {
		t.Errorf("Get() = %v, %v, want the stored document", got, ok)
	}
	if cache.Size() != 1 {
		t.Errorf("Size() = %d, want 1", cache.Size())
	}

	a2 := doc("a2")
	cache.Set("a", a2)
	if got, _ := cache.Get("a"); got != a2 {
		t.Error("Set() did not replace the existing entry")
	}
	if cache.Size() != 1 {
		t.Errorf("Size() = %d after replace, want 1", cache.Size())
	}
}

func TestDocumentCache_LRUEviction(t *testing.T) {
	cache := NewDocumentCacheWithConfig(CacheConfig{MaxSize: 2})
	cache.Set("a", doc("a"))
	cache.Set("b", doc("b"))

	// touch a so that b is the least recently used
	cache.Get("a")
	cache.Set("c", doc("c"))

	if _, ok := cache.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	for _, key := range []string{"a", "c"} {
		if _, ok := cache.Get(key); !ok {
			t.Errorf("expected %s to be cached", key)
		}
	}
	if keys := cache.Keys(); len(keys) != 2 || keys[0] != "c" || keys[1] != "a" {
		t.Errorf("Keys() = %v, want [c a]", keys)
	}
}

func TestDocumentCache_TTL(t *testing.T) {
	cache := NewDocumentCacheWithConfig(CacheConfig{MaxSize: 10, TTL: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("a", doc("a"))
	now = now.Add(30 * time.Second)
	if _, ok := cache.Get("a"); !ok {
		t.Fatal("entry expired early")
	}
	now = now.Add(31 * time.Second)
	if _, ok := cache.Get("a"); ok {
		t.Error("entry did not expire")
	}
	if cache.Size() != 0 {
		t.Errorf("Size() = %d, expired entry not removed", cache.Size())
	}
}

func TestDocumentCache_Disabled(t *testing.T) {
	cache := NewDocumentCacheWithConfig(CacheConfig{MaxSize: 0})
	cache.Set("a", doc("a"))
	if cache.Size() != 0 {
		t.Errorf("Size() = %d, want 0 when disabled", cache.Size())
	}
}

func TestDocumentCache_RemoveAndClear(t *testing.T) {
	cache := NewDocumentCacheWithConfig(CacheConfig{MaxSize: 10})
	cache.Set("a", doc("a"))
	cache.Set("b", doc("b"))

	if !cache.Remove("a") {
		t.Error("Remove(a) = false")
	}
	if cache.Remove("a") {
		t.Error("second Remove(a) = true")
	}
	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("Size() = %d after Clear", cache.Size())
	}
}

func TestDocumentCache_Concurrent(t *testing.T) {
	cache := NewDocumentCacheWithConfig(CacheConfig{MaxSize: 16})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (i*j)%32)
				cache.Set(key, doc(key))
				cache.Get(key)
				if j%10 == 0 {
					cache.Remove(key)
				}
			}
		}(i)
	}
	wg.Wait()
	if cache.Size() > 16 {
		t.Errorf("Size() = %d exceeds MaxSize", cache.Size())
	}
}
