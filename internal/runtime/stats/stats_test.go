package stats

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestIncrReturnsRunningTotal(t *testing.T) {
	store := NewStore()

	if got := store.Incr("user.created", 1); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := store.Incr("user.created", 2); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := store.Incr("user.created", -1); got != 2 {
		t.Fatalf("expected 2 after negative delta, got %d", got)
	}

	if got := store.Get("user.created"); got != 2 {
		t.Fatalf("expected Get to see 2, got %d", got)
	}
	if got := store.Get("never.written"); got != 0 {
		t.Fatalf("expected zero for unknown key, got %d", got)
	}
}

func TestKeysSorted(t *testing.T) {
	store := NewStore()
	store.Incr("orders.total", 1)
	store.Incr("alerts.sent", 1)
	store.Incr("users.total", 1)

	want := []string{"alerts.sent", "orders.total", "users.total"}
	if got := store.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore()
	store.Incr("a", 5)

	snap := store.Snapshot()
	snap["a"] = 99
	snap["b"] = 1

	if got := store.Get("a"); got != 5 {
		t.Fatalf("expected store to be isolated from snapshot, got %d", got)
	}
	if got := store.Get("b"); got != 0 {
		t.Fatalf("expected no new key from snapshot mutation, got %d", got)
	}
}

func TestConcurrentIncrementsAreLossless(t *testing.T) {
	store := NewStore()

	const goroutines = 100
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			store.Incr("contended", 1)
		}()
	}
	wg.Wait()

	if got := store.Get("contended"); got != goroutines {
		t.Fatalf("expected exactly %d after concurrent increments, got %d", goroutines, got)
	}
}

func TestBeatTracksRecord(t *testing.T) {
	store := NewStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	store.Beat("user")
	now = now.Add(time.Second)
	store.BeatWithAction("user", "get_user")

	rec, ok := store.Heartbeat("user")
	if !ok {
		t.Fatal("expected heartbeat record to exist")
	}
	if rec.Service != "user" {
		t.Fatalf("expected service name, got %q", rec.Service)
	}
	if rec.Beats != 2 {
		t.Fatalf("expected 2 beats, got %d", rec.Beats)
	}
	if !rec.LastBeat.Equal(now) {
		t.Fatalf("expected last beat %s, got %s", now, rec.LastBeat)
	}
	if rec.LastAction != "get_user" {
		t.Fatalf("expected last action to stick, got %q", rec.LastAction)
	}

	// A plain beat keeps the previous action.
	now = now.Add(time.Second)
	store.Beat("user")
	rec, _ = store.Heartbeat("user")
	if rec.LastAction != "get_user" {
		t.Fatalf("expected plain beat to preserve last action, got %q", rec.LastAction)
	}
	if rec.Beats != 3 {
		t.Fatalf("expected 3 beats, got %d", rec.Beats)
	}
}

func TestHeartbeatMissing(t *testing.T) {
	store := NewStore()
	if _, ok := store.Heartbeat("ghost"); ok {
		t.Fatal("expected no record for unknown service")
	}
}

func TestHeartbeatsIsACopy(t *testing.T) {
	store := NewStore()
	store.Beat("user")
	store.Beat("order")

	all := store.Heartbeats()
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	delete(all, "user")

	if _, ok := store.Heartbeat("user"); !ok {
		t.Fatal("expected store to be isolated from returned map")
	}
}

func TestForget(t *testing.T) {
	store := NewStore()
	store.Beat("user")
	store.Forget("user")

	if _, ok := store.Heartbeat("user"); ok {
		t.Fatal("expected record to be gone after Forget")
	}
}
