package challenge

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()
	r := NewRegistry(cfg)
	t.Cleanup(r.Close)
	return r
}

func TestPutAndTake(t *testing.T) {
	r := newTestRegistry(t, Config{TTL: time.Minute})

	id, err := r.Put(Ceremony{Kind: KindRegistration, UserID: "u1", Username: "alice"})
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty ceremony ID")
	}

	c, ok := r.TakeAndRemove(id)
	if !ok {
		t.Fatal("expected ceremony to be claimable")
	}
	if c.Kind != KindRegistration || c.UserID != "u1" || c.Username != "alice" {
		t.Fatalf("unexpected ceremony: %+v", c)
	}

	if _, ok := r.TakeAndRemove(id); ok {
		t.Fatal("expected second take to fail: ceremonies are single-use")
	}
}

func TestPutRejectsInvalidKind(t *testing.T) {
	r := newTestRegistry(t, Config{TTL: time.Minute})

	if _, err := r.Put(Ceremony{UserID: "u1"}); err == nil {
		t.Fatal("expected zero kind to be rejected")
	}
}

func TestTakeUnknownID(t *testing.T) {
	r := newTestRegistry(t, Config{TTL: time.Minute})

	if _, ok := r.TakeAndRemove("bm90LWEtcmVhbC1pZA"); ok {
		t.Fatal("expected unknown ID take to fail")
	}
}

func TestExpiredCeremonyNotClaimable(t *testing.T) {
	r := newTestRegistry(t, Config{TTL: time.Minute})

	current := time.Now()
	r.now = func() time.Time { return current }

	id, err := r.Put(Ceremony{Kind: KindAuthentication, UserID: "u1"})
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}

	current = current.Add(time.Minute + time.Second)

	if _, ok := r.TakeAndRemove(id); ok {
		t.Fatal("expected expired ceremony take to fail")
	}
	if r.Len() != 0 {
		t.Fatalf("expected expired entry to be deleted on take, len=%d", r.Len())
	}
}

func TestSweepReapsExpired(t *testing.T) {
	r := newTestRegistry(t, Config{TTL: time.Minute})

	current := time.Now()
	r.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		if _, err := r.Put(Ceremony{Kind: KindRegistration, UserID: "u1"}); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}

	current = current.Add(2 * time.Minute)
	r.sweep()

	if r.Len() != 0 {
		t.Fatalf("expected sweep to reap all expired entries, len=%d", r.Len())
	}
}

func TestMaxPendingEvictsOldest(t *testing.T) {
	r := newTestRegistry(t, Config{TTL: time.Minute, MaxPending: 3})

	current := time.Now()
	r.now = func() time.Time { return current }

	firstID, err := r.Put(Ceremony{Kind: KindRegistration, UserID: "first"})
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}

	for i := 0; i < 3; i++ {
		current = current.Add(time.Second)
		if _, err := r.Put(Ceremony{Kind: KindRegistration, UserID: "later"}); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}

	if r.Len() != 3 {
		t.Fatalf("expected soft cap to hold len at 3, got %d", r.Len())
	}
	if _, ok := r.TakeAndRemove(firstID); ok {
		t.Fatal("expected oldest entry to have been evicted")
	}
}

func TestConcurrentTakeExactlyOneWinner(t *testing.T) {
	r := newTestRegistry(t, Config{TTL: time.Minute})

	id, err := r.Put(Ceremony{Kind: KindAuthentication, UserID: "u1"})
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}

	const goroutines = 32
	var wins atomic.Int64
	var start, done sync.WaitGroup
	start.Add(1)

	for i := 0; i < goroutines; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			if _, ok := r.TakeAndRemove(id); ok {
				wins.Add(1)
			}
		}()
	}

	start.Done()
	done.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestCloseIdempotent(t *testing.T) {
	r := NewRegistry(Config{TTL: time.Minute, SweepInterval: time.Millisecond})
	r.Close()
	r.Close()
}
