package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/coder/quartz"
	"github.com/go-playground/validator/v10"

	"meterjob/internal/config"
	"meterjob/internal/telemetry"
	"meterjob/internal/types"
)

// RunSummary counts what one evaluation pass did.
type RunSummary struct {
	ReferenceTime time.Time `json:"reference_time"`
	Enabled       bool      `json:"enabled"`
	Evaluated     int       `json:"evaluated"`
	Due           int       `json:"due"`
	Accepted      int       `json:"accepted"`
	Rejected      int       `json:"rejected"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	Missing       int       `json:"missing"`
	Future        int       `json:"future"`
	Advanced      int       `json:"advanced"`
	// Errors counts schedules whose processing hit a fault: a store error,
	// an audit write failure or a recovered panic.
	Errors int `json:"errors"`
}

func (s *RunSummary) count(kind types.OutcomeKind) {
	switch kind {
	case types.OutcomeAccepted:
		s.Accepted++
	case types.OutcomeRejected:
		s.Rejected++
	case types.OutcomeSkipped:
		s.Skipped++
	case types.OutcomeFailed:
		s.Failed++
	}
}

// LogValue renders the summary as a single slog group.
func (s RunSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Time("reference_time", s.ReferenceTime),
		slog.Bool("enabled", s.Enabled),
		slog.Int("evaluated", s.Evaluated),
		slog.Int("due", s.Due),
		slog.Int("accepted", s.Accepted),
		slog.Int("rejected", s.Rejected),
		slog.Int("skipped", s.Skipped),
		slog.Int("failed", s.Failed),
		slog.Int("missing", s.Missing),
		slog.Int("future", s.Future),
		slog.Int("advanced", s.Advanced),
		slog.Int("errors", s.Errors),
	)
}

// EvaluatorConfig holds the dependencies of an Evaluator.
type EvaluatorConfig struct {
	Schedules  ScheduleStore
	Settings   config.ConfigValueSource
	Resolver   *QuantityResolver
	Emitter    *BillingEmitter
	Recorder   *AuditRecorder
	Dispatcher *Dispatcher
	Metrics    telemetry.RunMetrics
	Clock      quartz.Clock
	Logger     *slog.Logger
}

// Evaluator runs one metering pass over every schedule.
type Evaluator struct {
	schedules  ScheduleStore
	settings   config.ConfigValueSource
	resolver   *QuantityResolver
	emitter    *BillingEmitter
	recorder   *AuditRecorder
	dispatcher *Dispatcher
	metrics    telemetry.RunMetrics
	validate   *validator.Validate
	clock      quartz.Clock
	logger     *slog.Logger
}

func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	return &Evaluator{
		schedules:  cfg.Schedules,
		settings:   cfg.Settings,
		resolver:   cfg.Resolver,
		emitter:    cfg.Emitter,
		recorder:   cfg.Recorder,
		dispatcher: cfg.Dispatcher,
		metrics:    metrics,
		validate:   validator.New(),
		clock:      clock,
		logger:     logger,
	}
}

// Run evaluates every schedule against the hour containing now, or the
// clock's current time when now is zero. Feature flags are read once for the
// whole pass. Only a failure to read the flags or the schedules aborts the
// pass; faults in a single schedule are counted in Errors and the pass goes
// on.
func (e *Evaluator) Run(ctx context.Context, now time.Time) (RunSummary, error) {
	start := e.clock.Now()
	if now.IsZero() {
		now = start
	}
	now = now.UTC()

	summary := RunSummary{ReferenceTime: now}
	defer func() {
		e.metrics.RecordRunDuration(ctx, e.clock.Since(start))
		e.metrics.Flush(ctx)
	}()

	flags, err := config.LoadFeatureFlags(ctx, e.settings)
	if err != nil {
		return summary, fmt.Errorf("evaluator: %w", err)
	}
	if !flags.MeteredBillingEnabled {
		e.logger.InfoContext(ctx, "scheduled items will not be run because metered billing is disabled in the application config")
		return summary, nil
	}
	summary.Enabled = true

	tasks, err := e.schedules.ListAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("evaluator: listing schedules: %w", err)
	}

	buckets := make(map[types.Frequency][]types.ScheduledTask, len(types.Frequencies))
	for _, task := range tasks {
		if !task.Frequency.Known() {
			e.logger.WarnContext(ctx, "schedule has an unknown frequency and is never evaluated",
				"schedule_id", task.ID,
				"frequency", string(task.Frequency),
			)
			continue
		}
		buckets[task.Frequency] = append(buckets[task.Frequency], task)
	}

	hour := CurrentHour(now)
	for _, f := range types.Frequencies {
		if !flags.ForFrequency(f) {
			e.logger.InfoContext(ctx, "frequency disabled in the application config", "frequency", string(f))
			continue
		}

		bucket := buckets[f]
		e.logger.InfoContext(ctx, "checking scheduled items",
			"frequency", string(f),
			"hour", hour,
			"count", len(bucket),
		)
		e.metrics.RecordEvaluated(ctx, f, len(bucket))

		for _, task := range bucket {
			if err := ctx.Err(); err != nil {
				return summary, fmt.Errorf("evaluator: %w", err)
			}
			summary.Evaluated++
			e.evaluate(ctx, flags, task, now, &summary)
		}
	}

	e.logger.InfoContext(ctx, "evaluation pass complete", "summary", summary)
	return summary, nil
}

func (e *Evaluator) evaluate(ctx context.Context, flags types.FeatureFlags, task types.ScheduledTask, now time.Time, summary *RunSummary) {
	ctx = types.WithScheduleID(ctx, task.ID)
	anchor := task.Anchor()
	state, delta := Classify(task, now)

	e.logger.DebugContext(ctx, "classified schedule",
		"schedule_id", task.ID,
		"expected_run", anchor,
		"subscription_id", task.SubscriptionID,
		"plan_id", task.PlanID,
		"dimension", task.Dimension,
		"start_date", task.StartDate,
		"next_run_time", task.NextRunTime,
		"hours_difference", delta,
		"state", state.String(),
	)

	switch state {
	case DueOverdue:
		summary.Missing++
		e.metrics.RecordOutcome(ctx, task.Frequency, types.OutcomeMissing)
		detail := fmt.Sprintf("Scheduled Item Id: %d will not run as %s has passed. Please check audit logs if it has run previously.",
			task.ID, anchor.Format(time.RFC3339))
		e.logger.WarnContext(ctx, detail, "schedule_id", task.ID, telemetry.AppLog)

		if err := e.dispatcher.NotifyMissing(ctx, flags, task, detail, now); err != nil {
			e.fault(ctx, task, summary, "missing notification failed", err)
		}

	case DueFuture:
		summary.Future++
		e.logger.InfoContext(ctx, "schedule runs in the future", "schedule_id", task.ID, "next_run", anchor)

	case DueNow:
		summary.Due++
		e.processGuarded(ctx, flags, task, now, summary)
	}
}

// processGuarded keeps a panic in one schedule from ending the pass.
func (e *Evaluator) processGuarded(ctx context.Context, flags types.FeatureFlags, task types.ScheduledTask, now time.Time, summary *RunSummary) {
	defer func() {
		if r := recover(); r != nil {
			err := types.NewAppErrorWithDetails(types.ErrCodeInternalPanic, "panic while processing schedule", nil,
				map[string]any{"panic": fmt.Sprint(r), "stack": string(debug.Stack())})
			e.fault(ctx, task, summary, "recovered panic", err)
		}
	}()

	if err := e.process(ctx, flags, task, now, summary); err != nil {
		e.fault(ctx, task, summary, "schedule processing failed", err)
	}
}

func (e *Evaluator) fault(ctx context.Context, task types.ScheduledTask, summary *RunSummary, msg string, err error) {
	summary.Errors++
	e.metrics.RecordFault(ctx, task.Frequency)
	e.logger.ErrorContext(ctx, msg,
		"schedule_id", task.ID,
		"error", err,
		telemetry.AppLog,
	)
}

// process runs resolve, emit, record, advance and notify for a due
// schedule. Only an Accepted outcome with a persisted audit row moves the
// schedule forward, and OneTime schedules never move.
func (e *Evaluator) process(ctx context.Context, flags types.FeatureFlags, task types.ScheduledTask, now time.Time, summary *RunSummary) error {
	e.logger.InfoContext(ctx, "start triggering meter event", "schedule_id", task.ID, telemetry.AppLog)

	var outcome types.Outcome
	if err := e.validate.Struct(task); err != nil {
		e.logger.WarnContext(ctx, "schedule failed validation, emission skipped",
			"schedule_id", task.ID,
			"error", err,
		)
		outcome = types.Skipped(types.SkipValidation, "Validation", err.Error())
	} else {
		quantity, skipped, err := e.resolver.Resolve(ctx, task)
		if err != nil {
			return err
		}
		if skipped != nil {
			outcome = *skipped
		} else {
			outcome = e.emitter.Emit(ctx, task, quantity, now)
		}
	}

	summary.count(outcome.Kind)
	e.metrics.RecordOutcome(ctx, task.Frequency, outcome.Kind)

	record, err := e.recorder.Record(ctx, task, outcome, now)
	if err != nil {
		return fmt.Errorf("saving audit record, next run time not advanced: %w", err)
	}

	var advanceErr error
	if outcome.IsAccepted() && task.Frequency != types.FrequencyOneTime {
		if next := NextRunTime(task.Anchor(), task.Frequency); next != nil {
			if err := e.schedules.UpdateNextRunTime(ctx, task.ID, *next); err != nil {
				advanceErr = fmt.Errorf("advancing next run time: %w", err)
			} else {
				summary.Advanced++
				e.logger.InfoContext(ctx, "updated scheduler next run time",
					"schedule_id", task.ID,
					"from", task.NextRunTime,
					"to", *next,
					telemetry.AppLog,
				)
			}
		}
	} else if !outcome.IsAccepted() {
		e.logger.InfoContext(ctx, "meter event not accepted, next run time not updated",
			"schedule_id", task.ID,
			"status", outcome.Status(),
			telemetry.AppLog,
		)
	}

	e.dispatcher.NotifyOutcome(ctx, flags, task, outcome, record)
	return advanceErr
}
