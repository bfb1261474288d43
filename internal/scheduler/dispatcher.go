package scheduler

import (
	"context"
	"log/slog"
	"time"

	"meterjob/internal/external"
	"meterjob/internal/notify"
	"meterjob/internal/telemetry"
	"meterjob/internal/types"
)

// Dispatcher sends the scheduler emails. Delivery failures are logged and
// counted, never returned.
type Dispatcher struct {
	audit      AuditStore
	recorder   *AuditRecorder
	renderer   *notify.Renderer
	sender     external.EmailProvider
	recipients []string
	metrics    telemetry.RunMetrics
	logger     *slog.Logger
}

// DispatcherConfig holds the dependencies of a Dispatcher.
type DispatcherConfig struct {
	Audit      AuditStore
	Recorder   *AuditRecorder
	Renderer   *notify.Renderer
	Sender     external.EmailProvider
	Recipients []string
	Metrics    telemetry.RunMetrics
	Logger     *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	return &Dispatcher{
		audit:      cfg.Audit,
		recorder:   cfg.Recorder,
		renderer:   cfg.Renderer,
		sender:     cfg.Sender,
		recipients: cfg.Recipients,
		metrics:    metrics,
		logger:     logger,
	}
}

// NotifyMissing emails about an overdue schedule at most once in the
// schedule's lifetime. A schedule with any audit history is assumed to have
// run, or to have been reported, and is left alone. Otherwise a Missing
// audit row is appended before sending so later passes stay quiet. Errors
// come only from the audit store.
func (d *Dispatcher) NotifyMissing(ctx context.Context, flags types.FeatureFlags, task types.ScheduledTask, detail string, now time.Time) error {
	if !flags.MissingEmail {
		return nil
	}

	ran, err := d.audit.ExistsForSchedule(ctx, task.ID)
	if err != nil {
		return err
	}
	if ran {
		d.logger.DebugContext(ctx, "schedule has audit history, missing email suppressed", "schedule_id", task.ID)
		return nil
	}

	record, err := d.recorder.Record(ctx, task, types.Missing(detail), now)
	if err != nil {
		return err
	}

	d.send(ctx, notify.TemplateMissing, task, record)
	return nil
}

// NotifyOutcome emails the result of an emission when the matching flag is
// on: the success flag for Accepted, the failure flag for everything else.
func (d *Dispatcher) NotifyOutcome(ctx context.Context, flags types.FeatureFlags, task types.ScheduledTask, outcome types.Outcome, record types.MeteredAuditLog) {
	if !flags.NotifyOutcome(outcome.Kind) {
		return
	}
	tmpl := notify.TemplateFailure
	if outcome.IsAccepted() {
		tmpl = notify.TemplateSuccess
	}
	d.send(ctx, tmpl, task, record)
}

func (d *Dispatcher) send(ctx context.Context, tmpl notify.Template, task types.ScheduledTask, record types.MeteredAuditLog) {
	if len(d.recipients) == 0 {
		d.logger.WarnContext(ctx, "no scheduler email recipients configured, email not sent",
			"schedule_id", task.ID,
			"template", string(tmpl),
		)
		return
	}

	msg, err := d.renderer.Render(tmpl, notify.DataFor(task, record), d.recipients)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to render scheduler email",
			"schedule_id", task.ID,
			"template", string(tmpl),
			"error", err,
		)
		d.metrics.RecordNotificationFailed(ctx)
		return
	}

	id, err := d.sender.Send(ctx, msg)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to send scheduler email",
			"schedule_id", task.ID,
			"template", string(tmpl),
			"recipients", notify.RedactAll(d.recipients),
			"error", err,
		)
		d.metrics.RecordNotificationFailed(ctx)
		return
	}

	d.logger.InfoContext(ctx, "scheduler email sent",
		"schedule_id", task.ID,
		"template", string(tmpl),
		"message_id", id,
	)
}
