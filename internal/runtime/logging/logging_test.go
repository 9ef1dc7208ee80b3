package logging

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
)

func TestEntryServiceLoggerDelegates(t *testing.T) {
	entry := newStubEntry()
	logger := NewEntryServiceLogger(entry)

	logger.Info("runtime boot", LogFields{"supervisor": "fleet"})

	child := logger.With(LogFields{"base": "value"})
	child.Debug("child", LogFields{"child": "value"})

	boom := errors.New("boom")
	child.Error("child failed", boom, LogFields{"child": "value"})

	child.Trace("trace", nil)

	logs := entry.recorder.logs
	if len(logs) != 4 {
		t.Fatalf("expected 4 log entries, got %d", len(logs))
	}

	if logs[0].level != "info" || logs[0].msg != "runtime boot" {
		t.Fatalf("unexpected first log: %#v", logs[0])
	}
	if got := logs[0].fields["supervisor"]; got != "fleet" {
		t.Fatalf("missing supervisor field, got %v", got)
	}

	if logs[1].level != "debug" {
		t.Fatalf("expected debug level on second log, got %s", logs[1].level)
	}
	if logs[1].fields["base"] != "value" || logs[1].fields["child"] != "value" {
		t.Fatalf("expected merged fields on second log, got %#v", logs[1].fields)
	}

	if logs[2].level != "error" || logs[2].err != boom {
		t.Fatalf("expected error with boom, got %#v", logs[2])
	}

	if logs[3].level != "trace" {
		t.Fatalf("expected trace level on final log, got %s", logs[3].level)
	}
}

func TestEntryServiceLoggerPanicsOnNil(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when entry logger nil")
		}
	}()
	NewEntryServiceLogger[EntryLogger](nil)
}

func TestEntryServiceLoggerWithNilFields(t *testing.T) {
	entry := newStubEntry()
	logger := NewEntryServiceLogger(entry)
	child := logger.With(nil)
	child.Info("test", nil)

	if len(entry.recorder.logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entry.recorder.logs))
	}
}

func TestWatermillServiceLoggerDelegates(t *testing.T) {
	base := newCaptureWatermillLogger()
	logger := NewWatermillServiceLogger(base)

	logger.Debug("dbg", LogFields{"component": "watermill"})
	logger.Info("info", nil)
	logger.Trace("trace", LogFields{"trace": true})
	logger.Error("oops", errors.New("boom"), LogFields{"failed": true})

	child := logger.With(LogFields{"child": "yes"})
	typedChild, ok := child.(*watermillServiceLogger)
	if !ok {
		t.Fatal("expected watermill service logger")
	}
	typedChild.Info("child_info", nil)

	if len(base.entries) != 6 {
		t.Fatalf("expected 6 log entries, got %d", len(base.entries))
	}
	if base.entries[0].level != "debug" || base.entries[0].fields["component"] != "watermill" {
		t.Fatalf("unexpected first entry: %#v", base.entries[0])
	}
	if base.entries[4].fields["child"] != "yes" {
		t.Fatalf("expected With to propagate fields, got %#v", base.entries[4].fields)
	}
}

func TestWatermillServiceLoggerPanicsOnNilLogger(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when logger nil")
		}
	}()
	NewWatermillServiceLogger(nil)
}

func TestSlogLoggerPanicsOnNil(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when slog logger nil")
		}
	}()
	NewSlogServiceLogger(nil)
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := Nop()
	logger.Info("dropped", LogFields{"k": "v"})
	logger.Error("dropped", errors.New("boom"), nil)
	logger.With(LogFields{"child": "yes"}).Debug("dropped", nil)
}

func TestWatermillAdapterDelegates(t *testing.T) {
	base := &captureServiceLogger{}
	adapter := NewWatermillAdapter(base)

	adapter.Debug("dbg", watermill.LogFields{"k": "v"})
	adapter.Info("info", nil)
	adapter.Trace("trace", nil)
	adapter.Error("err", errors.New("boom"), nil)

	child := adapter.With(watermill.LogFields{"child": "yes"})
	typedChild, ok := child.(*serviceLoggerAdapter)
	if !ok {
		t.Fatal("expected service logger adapter child")
	}
	childBase, ok := typedChild.base.(*captureServiceLogger)
	if !ok {
		t.Fatal("expected recording service logger child base")
	}
	child.Info("child_info", nil)

	if len(base.entries) != 4 {
		t.Fatalf("expected 4 delegated entries on base, got %d", len(base.entries))
	}
	if len(childBase.entries) != 2 {
		t.Fatalf("expected child logger to record entries, got %d", len(childBase.entries))
	}
	if childBase.entries[0].fields["child"] != "yes" {
		t.Fatalf("expected child fields to be preserved")
	}
}

func TestWatermillAdapterPanicsOnNil(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when adapter nil")
		}
	}()
	NewWatermillAdapter(nil)
}

func TestApplyEntryFieldsIgnoresNil(t *testing.T) {
	entry := newStubEntry()
	enriched := applyEntryFields(entry, nil)
	if enriched != entry {
		t.Fatal("expected nil fields to return same instance")
	}
	withFields := applyEntryFields(entry, LogFields{"k": "v"})
	if withFields == entry {
		t.Fatal("expected new entry when fields provided")
	}
}

func TestWatermillFieldConversions(t *testing.T) {
	if toWatermillFields(nil) != nil {
		t.Fatal("expected nil conversion to return nil")
	}
	if fromWatermillFields(nil) != nil {
		t.Fatal("expected nil conversion to return nil")
	}

	wm := toWatermillFields(LogFields{"a": 1})
	if wm["a"].(int) != 1 {
		t.Fatalf("unexpected watermill fields: %#v", wm)
	}
	lf := fromWatermillFields(wm)
	if lf["a"].(int) != 1 {
		t.Fatalf("unexpected log fields: %#v", lf)
	}
}

func TestNewSlogServiceLoggerWrapsSlog(t *testing.T) {
	base := slog.New(slog.NewTextHandler(testWriter{}, nil))
	logger := NewSlogServiceLogger(base)
	logger.Info("hello", LogFields{"k": "v"})
}

type captureWatermillLogger struct {
	entries []wmRecord
	sink    *[]wmRecord
}

func newCaptureWatermillLogger() *captureWatermillLogger {
	logger := &captureWatermillLogger{}
	logger.sink = &logger.entries
	return logger
}

func (r *captureWatermillLogger) record(entry wmRecord) {
	if r.sink == nil {
		r.sink = &r.entries
	}
	*r.sink = append(*r.sink, entry)
}

type wmRecord struct {
	level  string
	fields watermill.LogFields
	err    error
}

func (r *captureWatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	r.record(wmRecord{level: "error", fields: fields, err: err})
}

func (r *captureWatermillLogger) Info(msg string, fields watermill.LogFields) {
	r.record(wmRecord{level: "info", fields: fields})
}

func (r *captureWatermillLogger) Debug(msg string, fields watermill.LogFields) {
	r.record(wmRecord{level: "debug", fields: fields})
}

func (r *captureWatermillLogger) Trace(msg string, fields watermill.LogFields) {
	r.record(wmRecord{level: "trace", fields: fields})
}

func (r *captureWatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	child := newCaptureWatermillLogger()
	child.sink = r.sink
	child.record(wmRecord{level: "with", fields: fields})
	return child
}

type captureServiceLogger struct {
	entries []logRecord
}

type logRecord struct {
	level  string
	msg    string
	fields LogFields
	err    error
}

func (r *captureServiceLogger) With(fields LogFields) ServiceLogger {
	cloned := &captureServiceLogger{}
	cloned.entries = append(cloned.entries, logRecord{level: "with", fields: fields})
	return cloned
}

func (r *captureServiceLogger) Debug(msg string, fields LogFields) {
	r.entries = append(r.entries, logRecord{level: "debug", msg: msg, fields: fields})
}

func (r *captureServiceLogger) Info(msg string, fields LogFields) {
	r.entries = append(r.entries, logRecord{level: "info", msg: msg, fields: fields})
}

func (r *captureServiceLogger) Error(msg string, err error, fields LogFields) {
	r.entries = append(r.entries, logRecord{level: "error", msg: msg, fields: fields, err: err})
}

func (r *captureServiceLogger) Trace(msg string, fields LogFields) {
	r.entries = append(r.entries, logRecord{level: "trace", msg: msg, fields: fields})
}

type stubEntry struct {
	recorder *entrySink
	fields   LogFields
	err      error
}

type entrySink struct {
	logs []logRecord
}

func newStubEntry() *stubEntry {
	return &stubEntry{recorder: &entrySink{}}
}

func (f *stubEntry) clone() *stubEntry {
	clonedFields := cloneFields(f.fields)
	return &stubEntry{recorder: f.recorder, fields: clonedFields, err: f.err}
}

func (f *stubEntry) Error(args ...any) {
	f.append("error", args...)
}

func (f *stubEntry) Info(args ...any) {
	f.append("info", args...)
}

func (f *stubEntry) Debug(args ...any) {
	f.append("debug", args...)
}

func (f *stubEntry) Trace(args ...any) {
	f.append("trace", args...)
}

func (f *stubEntry) WithError(err error) *stubEntry {
	clone := f.clone()
	clone.err = err
	return clone
}

func (f *stubEntry) WithField(key string, value any) *stubEntry {
	clone := f.clone()
	if clone.fields == nil {
		clone.fields = make(LogFields)
	}
	clone.fields[key] = value
	return clone
}

func (f *stubEntry) append(level string, args ...any) {
	msg := fmt.Sprint(args...)
	entry := logRecord{
		level:  level,
		msg:    msg,
		fields: cloneFields(f.fields),
		err:    f.err,
	}
	f.recorder.logs = append(f.recorder.logs, entry)
}

func cloneFields(fields LogFields) LogFields {
	if len(fields) == 0 {
		return nil
	}
	out := make(LogFields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }
