package scheduler

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// Metric and dimension names for cycle observability.
const (
	MetricEventsSeen    = "EventsSeen"
	MetricRemindersSent = "RemindersSent"
	MetricSendFailures  = "SendFailures"
	MetricCycleDuration = "CycleDuration"

	DimOutcome = "Outcome"
)

// CycleMetrics records the outcome of one cycle.
type CycleMetrics interface {
	RecordCycle(ctx context.Context, report CycleReport, elapsed time.Duration)
}

// NoopCycleMetrics discards everything. Used in local runs and tests.
type NoopCycleMetrics struct{}

func (NoopCycleMetrics) RecordCycle(context.Context, CycleReport, time.Duration) {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchCycleMetrics implements CycleMetrics.
var _ CycleMetrics = (*CloudWatchCycleMetrics)(nil)

// CloudWatchCycleMetrics publishes cycle counters and duration to a
// CloudWatch namespace. Publish failures are logged, never propagated; a
// metrics outage must not fail a cycle.
type CloudWatchCycleMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchCycleMetrics creates a CloudWatchCycleMetrics publishing to
// the given namespace.
func NewCloudWatchCycleMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchCycleMetrics {
	return &CloudWatchCycleMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordCycle emits the cycle counters in one PutMetricData call. Counter
// metrics carry an Outcome dimension matching the watermark kind so the
// no_events and sent series can be graphed separately.
func (m *CloudWatchCycleMetrics) RecordCycle(ctx context.Context, report CycleReport, elapsed time.Duration) {
	outcome := string(report.Watermark)
	if report.Disabled {
		outcome = "disabled"
	}
	dims := []cwtypes.Dimension{
		{
			Name:  aws.String(DimOutcome),
			Value: aws.String(outcome),
		},
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricEventsSeen),
				Value:      aws.Float64(float64(report.EventsSeen)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(MetricRemindersSent),
				Value:      aws.Float64(float64(report.RemindersSent)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(MetricSendFailures),
				Value:      aws.Float64(float64(report.SendFailures)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(MetricCycleDuration),
				Value:      aws.Float64(float64(elapsed.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record cycle metrics",
			"error", err.Error(),
			"outcome", outcome,
		)
	}
}
