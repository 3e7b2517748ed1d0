package core

import (
	"context"
	"fmt"
	"strings"
)

// Every service operation emits oauth.<operation>.total and
// oauth.<operation>.duration_ms tagged with operation, status and, when
// known, the keys in OperationTagKeys.
const metricPrefix = "oauth."

var OperationTagKeys = []string{"provider_type", "provider_kind", "error_kind"}

// NopMetricsRecorder is the recorder used when WithMetricsRecorder is not
// given.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func operationCounterName(operation string) string {
	return metricPrefix + operation + ".total"
}

func operationDurationName(operation string) string {
	return metricPrefix + operation + ".duration_ms"
}

func operationTags(operation string, status string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range OperationTagKeys {
		if value := strings.TrimSpace(fmt.Sprint(fields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}
	return tags
}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
