package logging

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// LogFields represents structured logging key/value pairs used by the runtime.
type LogFields map[string]any

// ServiceLogger is the minimal logging contract required by the runtime and
// its supervised services. It maps directly onto Watermill's logging needs so
// applications can adapt their existing loggers without depending on slog.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
	Trace(msg string, fields LogFields)
}

// EntryLogger is the interface form of EntryLoggerAdapter, for callers that
// hold an entry-style logger behind an interface value.
type EntryLogger interface {
	EntryLoggerAdapter[EntryLogger]
}

// EntryLoggerAdapter captures the capabilities required by
// NewEntryServiceLogger. The constraint is generic so entry-style loggers
// (for example, loggers whose methods return their own concrete interface
// type) can be used without additional wrappers.
type EntryLoggerAdapter[T any] interface {
	Error(args ...any)
	Info(args ...any)
	Debug(args ...any)
	Trace(args ...any)
	WithError(err error) T
	WithField(key string, value any) T
}

var logLevelMapping = map[slog.Level]slog.Level{
	slog.LevelDebug: slog.LevelDebug,
	slog.LevelInfo:  slog.LevelInfo,
	slog.LevelWarn:  slog.LevelWarn,
	slog.LevelError: slog.LevelError,
}

// NewSlogServiceLogger wraps a slog.Logger so it satisfies the ServiceLogger
// interface.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("maestro: slog logger cannot be nil")
	}
	return NewWatermillServiceLogger(watermill.NewSlogLoggerWithLevelMapping(log, logLevelMapping))
}

// NewWatermillServiceLogger wraps an existing Watermill LoggerAdapter so it
// can be supplied to NewRuntime.
func NewWatermillServiceLogger(logger watermill.LoggerAdapter) ServiceLogger {
	if logger == nil {
		panic("maestro: watermill logger cannot be nil")
	}
	return &watermillServiceLogger{inner: logger}
}

// NewEntryServiceLogger wraps an entry-style logger (for example a
// logrus.Entry) so it can drive the runtime without extra adapters.
func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	if any(entry) == nil {
		panic("maestro: entry logger cannot be nil")
	}
	return &entryServiceLogger[T]{entry: entry}
}

// Nop returns a ServiceLogger that discards everything. Handy in tests.
func Nop() ServiceLogger {
	return NewWatermillServiceLogger(watermill.NopLogger{})
}

type watermillServiceLogger struct {
	inner watermill.LoggerAdapter
}

type entryServiceLogger[T EntryLoggerAdapter[T]] struct {
	entry T
}

func (e *entryServiceLogger[T]) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return e
	}
	return &entryServiceLogger[T]{entry: applyEntryFields(e.entry, fields)}
}

func (e *entryServiceLogger[T]) Debug(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Debug(msg)
}

func (e *entryServiceLogger[T]) Info(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Info(msg)
}

func (e *entryServiceLogger[T]) Error(msg string, err error, fields LogFields) {
	logger := applyEntryFields(e.entry, fields)
	if err != nil {
		logger = logger.WithError(err)
	}
	logger.Error(msg)
}

func (e *entryServiceLogger[T]) Trace(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Trace(msg)
}

func (w *watermillServiceLogger) With(fields LogFields) ServiceLogger {
	return &watermillServiceLogger{inner: w.inner.With(toWatermillFields(fields))}
}

func (w *watermillServiceLogger) Debug(msg string, fields LogFields) {
	w.inner.Debug(msg, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Info(msg string, fields LogFields) {
	w.inner.Info(msg, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Error(msg string, err error, fields LogFields) {
	w.inner.Error(msg, err, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Trace(msg string, fields LogFields) {
	w.inner.Trace(msg, toWatermillFields(fields))
}

type serviceLoggerAdapter struct {
	base ServiceLogger
}

// NewWatermillAdapter converts a ServiceLogger into a Watermill LoggerAdapter
// so the event router and transports can reuse the same logger abstraction.
func NewWatermillAdapter(log ServiceLogger) watermill.LoggerAdapter {
	if log == nil {
		panic("maestro: ServiceLogger cannot be nil")
	}
	return &serviceLoggerAdapter{base: log}
}

func (s *serviceLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	s.base.Error(msg, err, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	s.base.Info(msg, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	s.base.Debug(msg, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	s.base.Trace(msg, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &serviceLoggerAdapter{base: s.base.With(fromWatermillFields(fields))}
}

func toWatermillFields(fields LogFields) watermill.LogFields {
	if len(fields) == 0 {
		return nil
	}
	return watermill.LogFields(fields)
}

func fromWatermillFields(fields watermill.LogFields) LogFields {
	if len(fields) == 0 {
		return nil
	}
	return LogFields(fields)
}

func applyEntryFields[T EntryLoggerAdapter[T]](entry T, fields LogFields) T {
	if len(fields) == 0 || any(entry) == nil {
		return entry
	}
	enriched := entry
	for key, value := range fields {
		enriched = enriched.WithField(key, value)
	}
	return enriched
}
