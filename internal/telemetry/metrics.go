// Package telemetry publishes per-pass scheduler metrics.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"meterjob/internal/types"
)

// RunMetrics receives the events of one evaluation pass. Implementations
// must not fail the pass; publishing errors are logged.
type RunMetrics interface {
	RecordEvaluated(ctx context.Context, freq types.Frequency, count int)
	RecordOutcome(ctx context.Context, freq types.Frequency, kind types.OutcomeKind)
	RecordFault(ctx context.Context, freq types.Frequency)
	RecordNotificationFailed(ctx context.Context)
	RecordRunDuration(ctx context.Context, d time.Duration)
	Flush(ctx context.Context)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// maxDatumsPerCall is the PutMetricData limit.
const maxDatumsPerCall = 1000

// CloudWatchRunMetrics buffers datums during a pass and publishes them on
// Flush. The job runs for seconds, so one publish per pass is enough.
type CloudWatchRunMetrics struct {
	client    CloudWatchClient
	namespace string
	provider  string
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	datums []cwtypes.MetricDatum
}

var _ RunMetrics = (*CloudWatchRunMetrics)(nil)

// NewCloudWatchRunMetrics publishes to namespace (types.MetricNamespace when
// empty). provider is attached to outcome metrics as the billing provider
// dimension.
func NewCloudWatchRunMetrics(client CloudWatchClient, namespace, provider string, logger *slog.Logger) *CloudWatchRunMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRunMetrics{
		client:    client,
		namespace: namespace,
		provider:  provider,
		logger:    logger,
		now:       time.Now,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

func (m *CloudWatchRunMetrics) add(d cwtypes.MetricDatum) {
	d.Timestamp = aws.Time(m.now().UTC())
	m.mu.Lock()
	m.datums = append(m.datums, d)
	m.mu.Unlock()
}

func (m *CloudWatchRunMetrics) RecordEvaluated(_ context.Context, freq types.Frequency, count int) {
	m.add(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricSchedulesEvaluated),
		Value:      aws.Float64(float64(count)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimFrequency, string(freq))},
	})
}

func (m *CloudWatchRunMetrics) RecordOutcome(_ context.Context, freq types.Frequency, kind types.OutcomeKind) {
	m.add(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricUsageOutcome),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimFrequency, string(freq)),
			dim(types.DimStatus, kind.String()),
			dim(types.DimProvider, m.provider),
		},
	})
}

func (m *CloudWatchRunMetrics) RecordFault(_ context.Context, freq types.Frequency) {
	m.add(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricScheduleFault),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimFrequency, string(freq))},
	})
}

func (m *CloudWatchRunMetrics) RecordNotificationFailed(_ context.Context) {
	m.add(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricNotificationFailed),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
	})
}

// RecordRunDuration is recorded in milliseconds for CloudWatch precision.
func (m *CloudWatchRunMetrics) RecordRunDuration(_ context.Context, d time.Duration) {
	m.add(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRunDuration),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

// Flush publishes the buffered datums and clears the buffer, even when a
// publish fails.
func (m *CloudWatchRunMetrics) Flush(ctx context.Context) {
	m.mu.Lock()
	pending := m.datums
	m.datums = nil
	m.mu.Unlock()

	for start := 0; start < len(pending); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(pending))
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: pending[start:end],
		})
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to publish run metrics",
				"error", err.Error(),
				"datums", end-start,
			)
		}
	}
}

// NoopMetrics discards everything. Used when metrics are disabled.
type NoopMetrics struct{}

var _ RunMetrics = NoopMetrics{}

func (NoopMetrics) RecordEvaluated(context.Context, types.Frequency, int)             {}
func (NoopMetrics) RecordOutcome(context.Context, types.Frequency, types.OutcomeKind) {}
func (NoopMetrics) RecordFault(context.Context, types.Frequency)                      {}
func (NoopMetrics) RecordNotificationFailed(context.Context)                          {}
func (NoopMetrics) RecordRunDuration(context.Context, time.Duration)                  {}
func (NoopMetrics) Flush(context.Context)                                             {}
