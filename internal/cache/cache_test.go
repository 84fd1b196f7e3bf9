package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRU_GetSet(t *testing.T) {
	c := NewLRU[string](2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")

	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v; want 1, true", v, ok)
	}

	// "b" is now least recently used; adding "c" evicts it.
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRU_TTLExpiry(t *testing.T) {
	c := NewLRU[int](10, 10*time.Millisecond)

	c.Set("k", 42)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected fresh entry to be present")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire")
	}
}

func TestLRU_CleanExpired(t *testing.T) {
	c := NewLRU[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	c.Set("c", 3)

	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRU_DeleteAndPurge(t *testing.T) {
	c := NewLRU[int](10, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be deleted")
	}

	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d, want 0", c.Size())
	}
}

func TestManager_Cleanup(t *testing.T) {
	c := NewLRU[int](10, 5*time.Millisecond)
	c.Set("a", 1)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(10 * time.Millisecond)
	defer m.Stop()

	deadline := time.After(500 * time.Millisecond)
	for c.Size() != 0 {
		select {
		case <-deadline:
			t.Fatal("manager never cleaned expired entry")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestLoader_CollapsesConcurrentFetches(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	l := NewLoader[int](c)

	var fetches atomic.Int32
	fetch := func(context.Context) (int, error) {
		fetches.Add(1)
		time.Sleep(10 * time.Millisecond)
		return 7, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Load(context.Background(), "k", fetch)
			if err != nil || v != 7 {
				t.Errorf("Load() = %d, %v; want 7, nil", v, err)
			}
		}()
	}
	wg.Wait()

	if n := fetches.Load(); n != 1 {
		t.Errorf("fetch ran %d times, want 1", n)
	}

	// Subsequent loads hit the cache.
	if _, err := l.Load(context.Background(), "k", fetch); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("fetch ran %d times after cached load, want 1", n)
	}
}

func TestLoader_ErrorNotCached(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	l := NewLoader[int](c)

	boom := errors.New("boom")
	if _, err := l.Load(context.Background(), "k", func(context.Context) (int, error) {
		return 0, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Load() error = %v, want boom", err)
	}

	v, err := l.Load(context.Background(), "k", func(context.Context) (int, error) {
		return 9, nil
	})
	if err != nil || v != 9 {
		t.Errorf("Load() after failure = %d, %v; want 9, nil", v, err)
	}
}
