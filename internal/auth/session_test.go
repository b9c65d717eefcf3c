package auth

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	store := NewStore(time.Minute)
	handle, ttl, err := store.Create("upstream-token", "https://vcf.example.local")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if handle == "" {
		t.Fatal("expected non-empty handle")
	}
	if len(handle) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(handle))
	}
	if ttl != 60 {
		t.Fatalf("expected ttl 60 seconds, got %d", ttl)
	}

	session, ok := store.Get(handle)
	if !ok {
		t.Fatal("expected handle to resolve")
	}
	if session.UpstreamToken != "upstream-token" {
		t.Fatalf("expected upstream token to round-trip, got %q", session.UpstreamToken)
	}
	if session.Origin != "https://vcf.example.local" {
		t.Fatalf("unexpected origin %q", session.Origin)
	}

	store.Invalidate(handle)
	if _, ok := store.Get(handle); ok {
		t.Fatal("expected invalidated handle to miss")
	}
}

func TestSessionExpiry(t *testing.T) {
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	store := NewStore(time.Minute, WithClock(now))

	handle, _, err := store.Create("token", "")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, ok := store.Get(handle); !ok {
		t.Fatal("expected fresh session to resolve")
	}

	mu.Lock()
	current = current.Add(time.Minute)
	mu.Unlock()

	if _, ok := store.Get(handle); ok {
		t.Fatal("expected session to expire at the TTL boundary")
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired session to be evicted, store has %d entries", store.Len())
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	store := NewStore(time.Minute)
	handle, _, err := store.Create("token", "")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	store.Invalidate(handle)
	store.Invalidate(handle)
	store.Invalidate("never-existed")
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d entries", store.Len())
	}
}

func TestHandlesAreUnique(t *testing.T) {
	store := NewStore(time.Minute)
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		handle, _, err := store.Create(fmt.Sprintf("token-%d", i), "")
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if seen[handle] {
			t.Fatalf("duplicate handle issued: %s", handle)
		}
		seen[handle] = true
	}
}

func TestCreatePropagatesHandleFactoryError(t *testing.T) {
	factoryErr := errors.New("entropy exhausted")
	store := NewStore(time.Minute, WithHandleFactory(func() (string, error) {
		return "", factoryErr
	}))
	if _, _, err := store.Create("token", ""); !errors.Is(err, factoryErr) {
		t.Fatalf("expected factory error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("expected no session to be stored on factory failure")
	}
}

func TestConcurrentCreateAndGet(t *testing.T) {
	store := NewStore(time.Minute)
	var wg sync.WaitGroup
	handles := make([]string, 32)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle, _, err := store.Create(fmt.Sprintf("token-%d", i), "")
			if err != nil {
				t.Errorf("Create returned error: %v", err)
				return
			}
			handles[i] = handle
		}(i)
	}
	wg.Wait()

	for _, handle := range handles {
		if handle == "" {
			continue
		}
		if _, ok := store.Get(handle); !ok {
			t.Fatalf("expected handle %s to resolve", handle)
		}
	}
}
