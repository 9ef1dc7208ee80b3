package order

import (
	"context"
	"errors"
	"testing"
	"time"

	maestro "github.com/drblury/maestro"
	"github.com/drblury/maestro/services/user"
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

// startFleet runs the order service next to a real user service so
// create_order exercises the cross-service validation call.
func startFleet(t *testing.T, rt *maestro.Runtime) {
	t.Helper()
	if err := rt.StartService(context.Background(), user.Name, user.New().Spec()); err != nil {
		t.Fatalf("start users failed: %v", err)
	}
	if err := rt.StartService(context.Background(), Name, New().Spec()); err != nil {
		t.Fatalf("start orders failed: %v", err)
	}
}

func call(t *testing.T, rt *maestro.Runtime, target, action string, payload map[string]any) (map[string]any, error) {
	t.Helper()
	return rt.Call(context.Background(), "test", target, action, payload, time.Second)
}

func mustCall(t *testing.T, rt *maestro.Runtime, target, action string, payload map[string]any) map[string]any {
	t.Helper()
	reply, err := call(t, rt, target, action, payload)
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

func TestCreateOrderValidatesUser(t *testing.T) {
	rt := testRuntime(t)
	startFleet(t, rt)
	mustCall(t, rt, user.Name, "create_user", map[string]any{"name": "ada", "email": "ada@example.com"})

	reply := mustCall(t, rt, Name, "create_order", map[string]any{
		"user_id":  1,
		"item":     "keyboard",
		"quantity": 2,
	})
	if reply["id"] != float64(1) || reply["user_id"] != float64(1) || reply["status"] != "created" {
		t.Fatalf("unexpected order: %v", reply)
	}
}

func TestCreateOrderRejectsUnknownUser(t *testing.T) {
	rt := testRuntime(t)
	startFleet(t, rt)

	_, err := call(t, rt, Name, "create_order", map[string]any{
		"user_id":  7,
		"item":     "keyboard",
		"quantity": 1,
	})
	if wireCode(t, err) != "invalid_user" {
		t.Fatalf("expected invalid_user, got %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	rt := testRuntime(t)
	startFleet(t, rt)

	_, err := call(t, rt, Name, "create_order", map[string]any{"user_id": 1, "quantity": 1})
	if wireCode(t, err) != "bad_request" {
		t.Fatalf("expected bad_request for missing item, got %v", err)
	}

	_, err = call(t, rt, Name, "create_order", map[string]any{"user_id": 1, "item": "keyboard"})
	if wireCode(t, err) != "bad_request" {
		t.Fatalf("expected bad_request for zero quantity, got %v", err)
	}
}

func TestCreateOrderFailsWhenUserServiceIsDown(t *testing.T) {
	rt := testRuntime(t)
	if err := rt.StartService(context.Background(), Name, New().Spec()); err != nil {
		t.Fatalf("start orders failed: %v", err)
	}

	_, err := call(t, rt, Name, "create_order", map[string]any{
		"user_id":  1,
		"item":     "keyboard",
		"quantity": 1,
	})
	if err == nil {
		t.Fatal("expected create_order to fail without the user service")
	}
}

func TestGetAndListOrders(t *testing.T) {
	rt := testRuntime(t)
	startFleet(t, rt)
	mustCall(t, rt, user.Name, "create_user", map[string]any{"name": "ada", "email": "ada@example.com"})
	mustCall(t, rt, Name, "create_order", map[string]any{"user_id": 1, "item": "keyboard", "quantity": 2})
	mustCall(t, rt, Name, "create_order", map[string]any{"user_id": 1, "item": "mouse", "quantity": 1})

	got := mustCall(t, rt, Name, "get_order", map[string]any{"id": 2})
	if got["item"] != "mouse" {
		t.Fatalf("unexpected order: %v", got)
	}

	_, err := call(t, rt, Name, "get_order", map[string]any{"id": 9})
	if wireCode(t, err) != "not_found" {
		t.Fatalf("expected not_found, got %v", err)
	}

	reply := mustCall(t, rt, Name, "list_orders", nil)
	if reply["count"] != float64(2) {
		t.Fatalf("expected 2 orders, got %v", reply)
	}
	orders, ok := reply["orders"].([]any)
	if !ok || len(orders) != 2 {
		t.Fatalf("unexpected orders list: %v", reply)
	}
	firstOrder, _ := orders[0].(map[string]any)
	if firstOrder["item"] != "keyboard" {
		t.Fatalf("expected orders sorted by id, got %v", orders)
	}
}
