package alerts

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"skywatch/internal/types"
)

// Decision labels the outcome of a dedup gate check for metric dimensions.
type Decision string

const (
	DecisionAllowed    Decision = "allowed"
	DecisionSuppressed Decision = "suppressed"
	DecisionFailOpen   Decision = "fail_open"
)

// Metrics records dedup gate decisions for observability.
type Metrics interface {
	RecordDecision(ctx context.Context, alertType types.AlertType, decision Decision)
}

// NoopMetrics discards all metrics. Used when no collector is wired.
type NoopMetrics struct{}

func (NoopMetrics) RecordDecision(context.Context, types.AlertType, Decision) {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchMetrics implements Metrics.
var _ Metrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics emits AlertGateDecision metrics with AlertType and
// Decision dimensions. Emission failures are logged, never propagated; the
// gate decision itself must not depend on observability.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a collector publishing to the given namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDecision emits one AlertGateDecision datum.
func (m *CloudWatchMetrics) RecordDecision(ctx context.Context, alertType types.AlertType, decision Decision) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String("AlertGateDecision"),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String("AlertType"),
						Value: aws.String(string(alertType)),
					},
					{
						Name:  aws.String("Decision"),
						Value: aws.String(string(decision)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record alert gate metric",
			"error", err.Error(),
			"alert_type", string(alertType),
			"decision", string(decision),
		)
	}
}
