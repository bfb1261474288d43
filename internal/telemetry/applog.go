package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"meterjob/internal/types"
)

// AppLogKey marks a log record for persistence in the application log table.
const AppLogKey = "app_log"

const scheduleLinePrefix = "Scheduled Item Id:"

// AppLog is the attribute to attach to records that operators should see in
// the application log, e.g. logger.Info("usage accepted", telemetry.AppLog).
var AppLog = slog.Bool(AppLogKey, true)

// AppLogSink persists a single application log line.
type AppLogSink interface {
	Add(ctx context.Context, message string) error
}

// AppLogHandler forwards every record to the wrapped handler and also writes
// the message of records carrying AppLog to sink.
type AppLogHandler struct {
	inner  slog.Handler
	sink   AppLogSink
	always bool
}

func NewAppLogHandler(inner slog.Handler, sink AppLogSink) *AppLogHandler {
	return &AppLogHandler{inner: inner, sink: sink}
}

func (h *AppLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *AppLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.sink != nil && (h.always || marked(r)) {
		// Sink errors are dropped; the record still reaches inner.
		_ = h.sink.Add(ctx, appLogLine(ctx, r.Message))
	}
	return h.inner.Handle(ctx, r)
}

// appLogLine prefixes msg with the schedule being processed, if any, so the
// operator log reads without the structured attributes.
func appLogLine(ctx context.Context, msg string) string {
	if id, ok := types.GetScheduleID(ctx); ok && !strings.HasPrefix(msg, scheduleLinePrefix) {
		return fmt.Sprintf("%s %d - %s", scheduleLinePrefix, id, msg)
	}
	return msg
}

func (h *AppLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	always := h.always
	for _, a := range attrs {
		if isMark(a) {
			always = true
		}
	}
	return &AppLogHandler{inner: h.inner.WithAttrs(attrs), sink: h.sink, always: always}
}

func (h *AppLogHandler) WithGroup(name string) slog.Handler {
	return &AppLogHandler{inner: h.inner.WithGroup(name), sink: h.sink, always: h.always}
}

func marked(r slog.Record) bool {
	found := false
	r.Attrs(func(a slog.Attr) bool {
		if isMark(a) {
			found = true
			return false
		}
		return true
	})
	return found
}

func isMark(a slog.Attr) bool {
	if a.Key != AppLogKey {
		return false
	}
	v := a.Value.Resolve()
	return v.Kind() == slog.KindBool && v.Bool()
}
