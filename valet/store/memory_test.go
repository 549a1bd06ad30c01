package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemory_PutGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Put(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	val, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if string(val) != "v" {
		t.Errorf("expected v, got %q", val)
	}

	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Error("missing key should not be found")
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Put(ctx, "short", []byte("v"), 10*time.Millisecond)
	if _, ok, _ := m.Get(ctx, "short"); !ok {
		t.Fatal("entry should be live before expiry")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "short"); ok {
		t.Error("entry should be gone after expiry")
	}
	// Expired entry must be indistinguishable from a missing one for
	// DeleteIfPresent too.
	m.Put(ctx, "short2", []byte("v"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := m.DeleteIfPresent(ctx, "short2"); ok {
		t.Error("expired entry should not be deletable as present")
	}
}

func TestMemory_DeleteIfPresent_SingleWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Put(ctx, "token", []byte("payload"), 0)

	const callers = 32
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := m.DeleteIfPresent(ctx, "token"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
}

func TestMemory_ReturnedSlicesAreCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Put(ctx, "a", []byte("value"), 0)
	got, _, _ := m.Get(ctx, "a")
	got[0] = 'X'
	again, _, _ := m.Get(ctx, "a")
	if string(again) != "value" {
		t.Errorf("mutating a Get result changed the store: %q", again)
	}

	m.Put(ctx, "b", []byte("value"), 0)
	taken, ok, _ := m.DeleteIfPresent(ctx, "b")
	if !ok {
		t.Fatal("delete should have found the entry")
	}
	m.Put(ctx, "b", taken, 0)
	taken[0] = 'X'
	reread, _, _ := m.Get(ctx, "b")
	if string(reread) != "value" {
		t.Errorf("mutating a DeleteIfPresent result changed the store: %q", reread)
	}
}

func TestMemory_PutIfAbsent_SingleWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const callers = 32
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, _ := m.PutIfAbsent(ctx, "idem", []byte("x"), 0)
			if stored {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
}

func TestMemory_PutIfAbsent_ExpiredSlotReusable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	stored, _ := m.PutIfAbsent(ctx, "k", []byte("a"), 10*time.Millisecond)
	if !stored {
		t.Fatal("first PutIfAbsent should store")
	}
	if stored, _ := m.PutIfAbsent(ctx, "k", []byte("b"), 0); stored {
		t.Fatal("second PutIfAbsent should lose while entry is live")
	}

	time.Sleep(20 * time.Millisecond)
	if stored, _ := m.PutIfAbsent(ctx, "k", []byte("c"), 0); !stored {
		t.Error("PutIfAbsent should win after expiry")
	}
}

func TestMemory_KeysByPrefix(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Put(ctx, "pending:a", []byte("1"), 0)
	m.Put(ctx, "pending:b", []byte("2"), 0)
	m.Put(ctx, "session:c", []byte("3"), 0)

	keys, err := m.Keys(ctx, "pending:")
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 pending keys, got %d: %v", len(keys), keys)
	}
}

func TestMemory_PurgeExpired(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Put(ctx, "a", []byte("1"), 10*time.Millisecond)
	m.Put(ctx, "b", []byte("2"), 0)
	time.Sleep(20 * time.Millisecond)

	if purged := m.PurgeExpired(); purged != 1 {
		t.Errorf("expected 1 purged, got %d", purged)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 live entry, got %d", m.Len())
	}
}
