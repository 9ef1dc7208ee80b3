package runtime

import (
	"errors"
	"testing"
	"time"

	errspkg "github.com/drblury/maestro/internal/runtime/errors"
	mailboxpkg "github.com/drblury/maestro/internal/runtime/mailbox"
	protocolpkg "github.com/drblury/maestro/internal/runtime/protocol"
)

func descriptor(name string, status Status) *ServiceDescriptor {
	return &ServiceDescriptor{
		Name:      name,
		UnitID:    "unit-" + name,
		Status:    status,
		StartedAt: time.Now().UTC(),
	}
}

func TestRegisterRequiresName(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register("", descriptor("", StatusStarting))
	if !errors.Is(err, errspkg.ErrWorkerNameRequired) {
		t.Fatalf("expected ErrWorkerNameRequired, got %v", err)
	}
}

func TestRegisterRejectsLiveDuplicate(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register("users", descriptor("users", StatusRunning)); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	err := reg.Register("users", descriptor("users", StatusStarting))
	var dup errspkg.DuplicateServiceError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateServiceError, got %v", err)
	}
	if dup.Name != "users" || dup.Status != string(StatusRunning) {
		t.Fatalf("unexpected duplicate detail: %+v", dup)
	}
}

func TestRegisterReplacesDeadEntry(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register("users", descriptor("users", StatusRunning)); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := reg.UpdateStatus("users", StatusDead); err != nil {
		t.Fatalf("mark dead failed: %v", err)
	}

	fresh := descriptor("users", StatusStarting)
	fresh.UnitID = "unit-users-2"
	if err := reg.Register("users", fresh); err != nil {
		t.Fatalf("re-register over dead entry failed: %v", err)
	}

	d, ok := reg.Get("users")
	if !ok {
		t.Fatal("expected registration")
	}
	if d.UnitID != "unit-users-2" || d.Status != StatusStarting {
		t.Fatalf("expected fresh descriptor, got %+v", d)
	}
}

func TestGetReturnsACopy(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("users", descriptor("users", StatusRunning)); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	d, _ := reg.Get("users")
	d.Status = StatusDead
	d.UnitID = "mutated"

	again, _ := reg.Get("users")
	if again.Status != StatusRunning || again.UnitID != "unit-users" {
		t.Fatalf("registry state leaked through Get copy: %+v", again)
	}
}

func TestListReturnsCopies(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("users", descriptor("users", StatusRunning)); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := reg.Register("orders", descriptor("orders", StatusStarting)); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	listed := reg.List()
	if len(listed) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(listed))
	}
	for _, d := range listed {
		d.Status = StatusStopped
	}

	d, _ := reg.Get("users")
	if d.Status != StatusRunning {
		t.Fatalf("registry state leaked through List copy: %+v", d)
	}
}

func TestUpdateStatusFollowsStateMachine(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusStarting, StatusRunning, true},
		{StatusStarting, StatusDead, true},
		{StatusStarting, StatusStopped, true},
		{StatusStarting, StatusDegraded, false},
		{StatusRunning, StatusDegraded, true},
		{StatusRunning, StatusDead, true},
		{StatusRunning, StatusStopped, true},
		{StatusRunning, StatusStarting, false},
		{StatusDegraded, StatusRunning, true},
		{StatusDegraded, StatusDead, true},
		{StatusDegraded, StatusStopped, true},
		{StatusDead, StatusStarting, true},
		{StatusDead, StatusRunning, false},
		{StatusStopped, StatusStarting, false},
		{StatusStopped, StatusRunning, false},
	}

	for _, tc := range cases {
		reg := NewRegistry()
		if err := reg.Register("svc", descriptor("svc", tc.from)); err != nil {
			t.Fatalf("register failed: %v", err)
		}

		err := reg.UpdateStatus("svc", tc.to)
		if tc.allowed {
			if err != nil {
				t.Fatalf("%s -> %s should be allowed, got %v", tc.from, tc.to, err)
			}
			d, _ := reg.Get("svc")
			if d.Status != tc.to {
				t.Fatalf("expected status %s, got %s", tc.to, d.Status)
			}
			continue
		}

		var invalid errspkg.InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Fatalf("%s -> %s should be rejected, got %v", tc.from, tc.to, err)
		}
		if invalid.From != string(tc.from) || invalid.To != string(tc.to) {
			t.Fatalf("unexpected transition detail: %+v", invalid)
		}
	}
}

func TestUpdateStatusSameStatusIsNoop(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("svc", descriptor("svc", StatusStopped)); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// STOPPED is terminal, but updating to the current status is a no-op,
	// not an illegal transition.
	if err := reg.UpdateStatus("svc", StatusStopped); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestUpdateStatusUnknownService(t *testing.T) {
	reg := NewRegistry()

	err := reg.UpdateStatus("ghost", StatusRunning)
	var notFound errspkg.ServiceNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ServiceNotFoundError, got %v", err)
	}
}

func TestRecordRestartAccumulates(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("svc", descriptor("svc", StatusRunning)); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := reg.RecordRestart("svc")
		if err != nil {
			t.Fatalf("record restart failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected restart count %d, got %d", want, got)
		}
	}

	if _, err := reg.RecordRestart("ghost"); err == nil {
		t.Fatal("expected error for unknown service")
	}
}

func TestRebindPointsAtFreshUnit(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("svc", descriptor("svc", StatusStarting)); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	inbox := mailboxpkg.New[*protocolpkg.Message](4)
	startedAt := time.Now().UTC().Add(time.Minute)
	if err := reg.rebind("svc", "unit-fresh", inbox, startedAt); err != nil {
		t.Fatalf("rebind failed: %v", err)
	}

	d, _ := reg.Get("svc")
	if d.UnitID != "unit-fresh" {
		t.Fatalf("expected fresh unit id, got %s", d.UnitID)
	}
	if d.Inbox != inbox {
		t.Fatal("expected descriptor to point at the fresh inbox")
	}
	if !d.StartedAt.Equal(startedAt) {
		t.Fatalf("expected refreshed start time, got %s", d.StartedAt)
	}

	if err := reg.rebind("ghost", "unit", inbox, startedAt); err == nil {
		t.Fatal("expected error for unknown service")
	}
}

func TestDeregisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("svc", descriptor("svc", StatusRunning)); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	reg.Deregister("svc")
	reg.Deregister("svc")

	if _, ok := reg.Get("svc"); ok {
		t.Fatal("expected registration to be gone")
	}
}

func TestStatusLive(t *testing.T) {
	live := []Status{StatusStarting, StatusRunning, StatusDegraded}
	for _, s := range live {
		if !s.Live() {
			t.Fatalf("expected %s to be live", s)
		}
	}
	for _, s := range []Status{StatusDead, StatusStopped} {
		if s.Live() {
			t.Fatalf("expected %s not to be live", s)
		}
	}
}
