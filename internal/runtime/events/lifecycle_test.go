package events

import (
	"testing"
)

func TestNewServiceEvent(t *testing.T) {
	evt := NewServiceEvent(TypeServiceRestarted, "maestro/supervisor", ServiceData{
		Service:      "user",
		UnitID:       "unit-1",
		Status:       "STARTING",
		PrevStatus:   "DEAD",
		RestartCount: 2,
		Reason:       "no heartbeat",
	})

	if evt.Type != TypeServiceRestarted {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if evt.Subject == nil || *evt.Subject != "user" {
		t.Fatal("expected service as subject")
	}
	if evt.DataContentType == nil || *evt.DataContentType != ContentTypeJSON {
		t.Fatal("expected JSON content type")
	}
	if GetService(evt) != "user" {
		t.Fatalf("expected service extension, got %q", GetService(evt))
	}
	if GetUnitID(evt) != "unit-1" {
		t.Fatalf("expected unit extension, got %q", GetUnitID(evt))
	}
	if GetStatus(evt) != "STARTING" {
		t.Fatalf("expected status extension, got %q", GetStatus(evt))
	}
	if GetRestartCount(evt) != 2 {
		t.Fatalf("expected restart count extension, got %d", GetRestartCount(evt))
	}

	data, ok := evt.Data.(ServiceData)
	if !ok {
		t.Fatalf("expected ServiceData payload, got %T", evt.Data)
	}
	if data.PrevStatus != "DEAD" || data.Reason != "no heartbeat" {
		t.Fatalf("unexpected data: %+v", data)
	}

	if err := evt.Validate(); err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}
}

func TestNewCallTimeoutEvent(t *testing.T) {
	evt := NewCallTimeoutEvent("maestro/supervisor", CallData{
		Source:        "order",
		Target:        "user",
		Action:        "validate_user",
		CorrelationID: "corr-1",
		TimeoutMs:     5000,
	})

	if evt.Type != TypeCallTimeout {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if evt.Subject == nil || *evt.Subject != "user" {
		t.Fatal("expected target as subject")
	}
	if GetCorrelationID(evt) != "corr-1" {
		t.Fatalf("expected correlation extension, got %q", GetCorrelationID(evt))
	}
}

func TestNewOverflowEvent(t *testing.T) {
	evt := NewOverflowEvent("maestro/supervisor", OverflowData{
		Service:  "notification",
		Capacity: 64,
		Source:   "order",
		Action:   "send_notification",
	})

	if evt.Type != TypeInboxOverflow {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if GetService(evt) != "notification" {
		t.Fatalf("expected service extension, got %q", GetService(evt))
	}

	data, ok := evt.Data.(OverflowData)
	if !ok || data.Capacity != 64 {
		t.Fatalf("unexpected data: %+v", evt.Data)
	}
}

func TestCopyTracingContext(t *testing.T) {
	src := New(TypeServiceDead, "maestro/monitor", nil)
	SetTraceID(&src, "trace-1")
	SetParentID(&src, "span-1")
	SetCorrelationID(&src, "corr-1")

	dst := New(TypeServiceRestarted, "maestro/supervisor", nil)
	CopyTracingContext(src, &dst)

	if GetTraceID(dst) != "trace-1" || GetParentID(dst) != "span-1" || GetCorrelationID(dst) != "corr-1" {
		t.Fatalf("expected tracing context to copy, got %v", dst.Extensions)
	}

	// Empty source leaves destination untouched.
	blank := New(TypeServiceReady, "maestro/supervisor", nil)
	CopyTracingContext(blank, &dst)
	if GetTraceID(dst) != "trace-1" {
		t.Fatal("expected empty source to leave tracing context alone")
	}
}
