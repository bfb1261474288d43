package types

// Telemetry metric names for CloudWatch.
const (
	MetricSchedulesEvaluated = "SchedulesEvaluated"
	MetricUsageOutcome       = "UsageOutcome"
	MetricScheduleFault      = "ScheduleFault"
	MetricRunDuration        = "RunDuration"
	MetricNotificationFailed = "NotificationFailed"

	DimStatus    = "Status"
	DimFrequency = "Frequency"
	DimProvider  = "Provider"

	MetricNamespace = "MeteredTrigger"
)
