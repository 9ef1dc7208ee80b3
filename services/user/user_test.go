package user

import (
	"context"
	"errors"
	"testing"
	"time"

	maestro "github.com/drblury/maestro"
	"github.com/prometheus/client_golang/prometheus"
)

func testRuntime(t *testing.T) *maestro.Runtime {
	t.Helper()

	conf := maestro.DefaultConfig()
	conf.StartupGrace = 2 * time.Second
	conf.DrainTimeout = time.Second
	conf.CallTimeout = 2 * time.Second
	conf.AutoRestart = false

	rt, err := maestro.TryNewRuntime(conf, maestro.NopLogger(), context.Background(), maestro.RuntimeDependencies{
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("runtime construction failed: %v", err)
	}
	return rt
}

func startUsers(t *testing.T, rt *maestro.Runtime) {
	t.Helper()
	if err := rt.StartService(context.Background(), Name, New().Spec()); err != nil {
		t.Fatalf("start users failed: %v", err)
	}
}

func call(t *testing.T, rt *maestro.Runtime, action string, payload map[string]any) (map[string]any, error) {
	t.Helper()
	return rt.Call(context.Background(), "test", Name, action, payload, time.Second)
}

func mustCall(t *testing.T, rt *maestro.Runtime, action string, payload map[string]any) map[string]any {
	t.Helper()
	reply, err := call(t, rt, action, payload)
	if err != nil {
		t.Fatalf("%s failed: %v", action, err)
	}
	return reply
}

func wireCode(t *testing.T, err error) string {
	t.Helper()
	var callErr maestro.ServiceCallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected ServiceCallError, got %v", err)
	}
	return callErr.Code
}

func TestCreateUserAssignsSequentialIDs(t *testing.T) {
	rt := testRuntime(t)
	startUsers(t, rt)

	first := mustCall(t, rt, "create_user", map[string]any{"name": "ada", "email": "ada@example.com"})
	if first["id"] != float64(1) || first["name"] != "ada" || first["email"] != "ada@example.com" {
		t.Fatalf("unexpected first user: %v", first)
	}

	second := mustCall(t, rt, "create_user", map[string]any{"name": "grace", "email": "grace@example.com"})
	if second["id"] != float64(2) {
		t.Fatalf("expected id 2, got %v", second)
	}
}

func TestCreateUserRequiresNameAndEmail(t *testing.T) {
	rt := testRuntime(t)
	startUsers(t, rt)

	_, err := call(t, rt, "create_user", map[string]any{"email": "nobody@example.com"})
	if wireCode(t, err) != "bad_request" {
		t.Fatalf("expected bad_request for missing name, got %v", err)
	}

	_, err = call(t, rt, "create_user", map[string]any{"name": "nobody"})
	if wireCode(t, err) != "bad_request" {
		t.Fatalf("expected bad_request for missing email, got %v", err)
	}
}

func TestGetUser(t *testing.T) {
	rt := testRuntime(t)
	startUsers(t, rt)
	mustCall(t, rt, "create_user", map[string]any{"name": "ada", "email": "ada@example.com"})

	got := mustCall(t, rt, "get_user", map[string]any{"id": 1})
	if got["name"] != "ada" {
		t.Fatalf("unexpected user: %v", got)
	}

	_, err := call(t, rt, "get_user", map[string]any{"id": 42})
	if wireCode(t, err) != "not_found" {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestListUsersSortedByID(t *testing.T) {
	rt := testRuntime(t)
	startUsers(t, rt)
	mustCall(t, rt, "create_user", map[string]any{"name": "ada", "email": "ada@example.com"})
	mustCall(t, rt, "create_user", map[string]any{"name": "grace", "email": "grace@example.com"})

	reply := mustCall(t, rt, "list_users", nil)
	if reply["count"] != float64(2) {
		t.Fatalf("expected 2 users, got %v", reply)
	}
	users, ok := reply["users"].([]any)
	if !ok || len(users) != 2 {
		t.Fatalf("unexpected users list: %v", reply)
	}
	firstUser, _ := users[0].(map[string]any)
	secondUser, _ := users[1].(map[string]any)
	if firstUser["id"] != float64(1) || secondUser["id"] != float64(2) {
		t.Fatalf("expected users sorted by id, got %v", users)
	}
}

func TestValidateUser(t *testing.T) {
	rt := testRuntime(t)
	startUsers(t, rt)
	mustCall(t, rt, "create_user", map[string]any{"name": "ada", "email": "ada@example.com"})

	reply := mustCall(t, rt, "validate_user", map[string]any{"id": 1})
	if reply["valid"] != true {
		t.Fatalf("expected user 1 to be valid, got %v", reply)
	}

	reply = mustCall(t, rt, "validate_user", map[string]any{"id": 99})
	if reply["valid"] != false {
		t.Fatalf("expected user 99 to be invalid, got %v", reply)
	}
}
