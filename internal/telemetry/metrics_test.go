package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterjob/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func dimensionValue(dims []cwtypes.Dimension, name string) string {
	for _, d := range dims {
		if aws.ToString(d.Name) == name {
			return aws.ToString(d.Value)
		}
	}
	return ""
}

func TestCloudWatchRunMetrics_BuffersUntilFlush(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchRunMetrics(cw, "", "marketplace", nil)
	ctx := context.Background()

	m.RecordEvaluated(ctx, types.FrequencyHourly, 3)
	m.RecordOutcome(ctx, types.FrequencyHourly, types.OutcomeAccepted)
	m.RecordFault(ctx, types.FrequencyDaily)
	m.RecordNotificationFailed(ctx)
	m.RecordRunDuration(ctx, 1500*time.Millisecond)
	assert.Empty(t, cw.calls)

	m.Flush(ctx)
	require.Len(t, cw.calls, 1)

	input := cw.calls[0]
	assert.Equal(t, types.MetricNamespace, aws.ToString(input.Namespace))
	require.Len(t, input.MetricData, 5)

	evaluated := input.MetricData[0]
	assert.Equal(t, types.MetricSchedulesEvaluated, aws.ToString(evaluated.MetricName))
	assert.Equal(t, 3.0, aws.ToFloat64(evaluated.Value))

	outcome := input.MetricData[1]
	assert.Equal(t, "accepted", dimensionValue(outcome.Dimensions, types.DimStatus))
	assert.Equal(t, "Hourly", dimensionValue(outcome.Dimensions, types.DimFrequency))
	assert.Equal(t, "marketplace", dimensionValue(outcome.Dimensions, types.DimProvider))

	duration := input.MetricData[4]
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, duration.Unit)
	assert.Equal(t, 1500.0, aws.ToFloat64(duration.Value))

	m.Flush(ctx)
	assert.Len(t, cw.calls, 1, "empty buffer publishes nothing")
}

func TestCloudWatchRunMetrics_Batches(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchRunMetrics(cw, "Custom", "stripe", nil)

	for i := 0; i < maxDatumsPerCall+5; i++ {
		m.RecordOutcome(context.Background(), types.FrequencyDaily, types.OutcomeSkipped)
	}
	m.Flush(context.Background())

	require.Len(t, cw.calls, 2)
	assert.Len(t, cw.calls[0].MetricData, maxDatumsPerCall)
	assert.Len(t, cw.calls[1].MetricData, 5)
	assert.Equal(t, "Custom", aws.ToString(cw.calls[1].Namespace))
}

func TestCloudWatchRunMetrics_PublishErrorIsSwallowed(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	m := NewCloudWatchRunMetrics(cw, "", "marketplace", nil)

	m.RecordFault(context.Background(), types.FrequencyHourly)
	m.Flush(context.Background())

	assert.Len(t, cw.calls, 1)
	m.Flush(context.Background())
	assert.Len(t, cw.calls, 1, "failed datums are dropped")
}
