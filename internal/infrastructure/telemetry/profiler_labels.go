package telemetry

import (
	"context"
	"sort"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelBranchID   = "branch_id"
	ProfilingLabelOperation  = "operation"
	ProfilingLabelDocument   = "document_type"
)

// MaxLabelValueLength caps label values to keep profile series bounded
const MaxLabelValueLength = 128

// highCardinalityLabels are dropped: one series per document would swamp the profiler
var highCardinalityLabels = map[string]bool{
	"request_id":  true,
	"trace_id":    true,
	"span_id":     true,
	"order_id":    true,
	"invoice_id":  true,
	"payment_id":  true,
	"customer_id": true,
}

// WithProfilingLabels runs fn with the labels attached to CPU samples.
// Goroutines started inside fn inherit the labels.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// OperationLabels labels a document operation
func OperationLabels(operation, documentType string) map[string]string {
	return map[string]string{
		ProfilingLabelOperation: operation,
		ProfilingLabelDocument:  documentType,
	}
}

// sanitizeLabels returns sorted key/value pairs with empty entries and
// high-cardinality keys removed and long values truncated.
func sanitizeLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k, v := range labels {
		if k == "" || v == "" || highCardinalityLabels[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		v := labels[k]
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		pairs = append(pairs, k, v)
	}
	return pairs
}
