// Package main is the entrypoint for the metered billing trigger.
//
// EventBridge invokes the function once an hour. Each invocation runs a
// single evaluation pass over every metering schedule: overdue schedules are
// reported, due schedules are billed with a live quantity and audited, and
// accepted schedules are moved to their next run time.
//
// Outside Lambda the binary runs one pass and exits, which is how the job is
// driven from cron or by hand:
//
//	meter-trigger -reference-time 2024-03-01T10:00:00Z
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"meterjob/internal/config"
	"meterjob/internal/db"
	"meterjob/internal/external"
	"meterjob/internal/notify"
	"meterjob/internal/scheduler"
	"meterjob/internal/telemetry"
	"meterjob/internal/types"
)

// jobType is the job_history.job_type of every pass.
const jobType = "metered_trigger"

// TriggerPayload is the EventBridge event. ReferenceTime replaces the
// current time when set, which lets an operator replay a specific hour.
type TriggerPayload struct {
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// Evaluator runs one pass.
type Evaluator interface {
	Run(ctx context.Context, now time.Time) (scheduler.RunSummary, error)
}

// JobHistorian abstracts the job history recording.
type JobHistorian interface {
	Start(ctx context.Context, jobType, runID string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

// Handler holds the dependencies of the Lambda handler. They are built once
// at cold start and reused across invocations.
type Handler struct {
	Evaluator  Evaluator
	JobHistory JobHistorian
	Logger     *slog.Logger

	// NewRunID is overridden in tests.
	NewRunID func() string
}

// Handle runs one evaluation pass. The returned error is non-nil only when
// the pass was aborted; per-schedule faults are reported in the summary.
func (h *Handler) Handle(ctx context.Context, payload TriggerPayload) (scheduler.RunSummary, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newRunID := h.NewRunID
	if newRunID == nil {
		newRunID = func() string { return uuid.New().String() }
	}

	runID := newRunID()
	ctx = types.WithRunID(ctx, runID)
	logger = logger.With("run_id", runID)

	var now time.Time
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	logger.InfoContext(ctx, "meter trigger invoked",
		"reference_time", now,
		"override", payload.ReferenceTime != nil,
	)

	jobID, err := h.JobHistory.Start(ctx, jobType, runID)
	if err != nil {
		// Non-fatal: history is operational visibility only.
		logger.ErrorContext(ctx, "failed to start job history", "error", err)
		jobID = 0
	}

	summary, runErr := h.Evaluator.Run(ctx, now)

	status := "success"
	switch {
	case runErr != nil:
		status = "failed"
	case summary.Errors > 0:
		status = "partial"
	}

	if jobID != 0 {
		if err := h.JobHistory.Finish(ctx, jobID, status, summary.Due, runErr); err != nil {
			logger.ErrorContext(ctx, "failed to finish job history",
				"job_id", jobID,
				"error", err,
			)
		}
	}

	if runErr != nil {
		logger.ErrorContext(ctx, "evaluation pass aborted", "error", runErr, telemetry.AppLog)
		return summary, fmt.Errorf("meter trigger %s: %w", runID, runErr)
	}

	logger.InfoContext(ctx, "meter trigger finished", "status", status, "summary", summary)
	return summary, nil
}

func main() {
	referenceTime := flag.String("reference-time", "", "evaluate this hour instead of now (RFC3339, local runs only)")
	flag.Parse()

	if err := run(*referenceTime); err != nil {
		fmt.Fprintf(os.Stderr, "meter-trigger: %v\n", err)
		os.Exit(1)
	}
}

func run(referenceTime string) error {
	bootLogger := newLogger(os.Stdout, "info", nil)
	bootLogger.Info("meter trigger initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.Build = config.NewBuildInfo()

	ctx := context.Background()

	var (
		awsCfg aws.Config
		pool   *pgxpool.Pool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		awsCfg, err = loadAWSConfig(gctx, cfg.AWS)
		return err
	})
	g.Go(func() error {
		var err error
		pool, err = db.NewPool(gctx, cfg.Database)
		return err
	})
	if err := g.Wait(); err != nil {
		if pool != nil {
			pool.Close()
		}
		return err
	}
	defer pool.Close()

	logger := newLogger(os.Stdout, cfg.LogLevel, db.NewApplicationLogRepository(pool)).With(
		"service", cfg.Service,
		"version", cfg.Build.Version,
		"environment", cfg.Environment,
	)
	slog.SetDefault(logger)

	handler, err := newHandler(cfg, awsCfg, pool, logger)
	if err != nil {
		return err
	}

	logger.Info("meter trigger initialized",
		"billing_provider", cfg.Billing.Provider,
		"email_provider", cfg.Email.Provider,
		"metrics", cfg.Observability.EnableMetrics,
	)

	if isLambdaEnvironment() {
		lambda.Start(handler.Handle)
		return nil
	}

	var payload TriggerPayload
	if referenceTime != "" {
		t, err := time.Parse(time.RFC3339, referenceTime)
		if err != nil {
			return fmt.Errorf("invalid -reference-time %q: %w", referenceTime, err)
		}
		payload.ReferenceTime = &t
	}

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_, err = handler.Handle(runCtx, payload)
	return err
}

// newHandler wires repositories, remote clients and the evaluator.
func newHandler(cfg *config.Config, awsCfg aws.Config, pool *pgxpool.Pool, logger *slog.Logger) (*Handler, error) {
	var opts []external.RegistryOption
	if cfg.Email.Provider == "sqs" {
		sender := notify.NewQueueSender(sqs.NewFromConfig(awsCfg), cfg.AWS.NotificationQueue, logger.With("client", "sqs"))
		opts = append(opts, external.WithEmailProvider(sender))
	}
	clients, err := external.NewClientRegistry(cfg, awsCfg, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("building clients: %w", err)
	}

	renderer, err := notify.NewRenderer(types.EmailAddress{Name: cfg.Email.FromName, Address: cfg.Email.FromAddress})
	if err != nil {
		return nil, fmt.Errorf("loading email templates: %w", err)
	}

	var metrics telemetry.RunMetrics = telemetry.NoopMetrics{}
	if cfg.Observability.EnableMetrics {
		metrics = telemetry.NewCloudWatchRunMetrics(
			cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace,
			cfg.Billing.Provider,
			logger,
		)
	}

	schedules := db.NewScheduleRepository(pool)
	audit := db.NewAuditLogRepository(pool)
	recorder := scheduler.NewAuditRecorder(audit)

	evaluator := scheduler.NewEvaluator(scheduler.EvaluatorConfig{
		Schedules: schedules,
		Settings:  db.NewAppConfigRepository(pool),
		Resolver:  scheduler.NewQuantityResolver(db.NewSubscriptionRepository(pool), clients.Directory, logger),
		Emitter:   scheduler.NewBillingEmitter(clients.Billing, logger),
		Recorder:  recorder,
		Dispatcher: scheduler.NewDispatcher(scheduler.DispatcherConfig{
			Audit:      audit,
			Recorder:   recorder,
			Renderer:   renderer,
			Sender:     clients.Email,
			Recipients: cfg.Email.Recipients,
			Metrics:    metrics,
			Logger:     logger,
		}),
		Metrics: metrics,
		Logger:  logger,
	})

	return &Handler{
		Evaluator:  evaluator,
		JobHistory: db.NewJobHistoryRepository(pool),
		Logger:     logger,
	}, nil
}

// loadAWSConfig resolves the SDK config, pointing every client at
// LocalStack when an endpoint override is configured.
func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.EndpointURL != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.EndpointURL))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	return hasRuntimeAPI
}

// newLogger builds the JSON logger. When sink is non-nil, records carrying
// telemetry.AppLog are also written to the application log table.
func newLogger(w io.Writer, level string, sink telemetry.AppLogSink) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	if sink != nil {
		handler = telemetry.NewAppLogHandler(handler, sink)
	}
	return slog.New(handler)
}
